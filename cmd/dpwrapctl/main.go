// Command dpwrapctl is the admin CLI for dpwrapd: putinfo/getinfo/list/
// debug/dump over the gob wire protocol in internal/protocol. Replaces
// cmd/perflock's flag-based single-binary CLI (main.go) with a cobra
// command tree, since the DP-Wrap admin surface has more independent
// subcommands than perflock's acquire/list/daemon trio.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var socketPath string

func main() {
	root := &cobra.Command{
		Use:   "dpwrapctl",
		Short: "Admin client for the dpwrapd DP-Wrap scheduling daemon",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "/var/run/dpwrapd.socket", "admin socket `path`")

	root.AddCommand(
		newPutInfoCmd(),
		newGetInfoCmd(),
		newListCmd(),
		newDebugCmd(),
		newDumpCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dpwrapctl:", err)
		os.Exit(1)
	}
}

func newPutInfoCmd() *cobra.Command {
	var sporadic bool
	var period, slice time.Duration

	cmd := &cobra.Command{
		Use:   "putinfo <domain> <vcpu>",
		Short: "Admit a VCPU, or update its (period, slice)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, vcpu, err := parseIDs(args)
			if err != nil {
				return err
			}
			c, err := NewClient(socketPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.PutInfo(domain, vcpu, period, slice, sporadic)
		},
	}
	cmd.Flags().DurationVar(&period, "period", 0, "reservation period")
	cmd.Flags().DurationVar(&slice, "slice", 0, "reservation slice")
	cmd.Flags().BoolVar(&sporadic, "sporadic", false, "admit as a sporadic (event-driven) VCPU")
	return cmd
}

func newGetInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "getinfo <domain> <vcpu>",
		Short: "Print a VCPU's currently active (period, slice)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, vcpu, err := parseIDs(args)
			if err != nil {
				return err
			}
			c, err := NewClient(socketPath)
			if err != nil {
				return err
			}
			defer c.Close()
			period, slice, err := c.GetInfo(domain, vcpu)
			if err != nil {
				return err
			}
			fmt.Printf("period=%s slice=%s\n", period, slice)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every admitted VCPU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(socketPath)
			if err != nil {
				return err
			}
			defer c.Close()
			rows, err := c.List()
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %-6s %-10s %-10s %-9s %-5s %-5s\n", "DOMAIN", "VCPU", "PERIOD", "SLICE", "SPORADIC", "CPUA", "CPUB")
			for _, r := range rows {
				cpub := "-"
				if r.Split {
					cpub = fmt.Sprint(r.CPUB)
				}
				fmt.Printf("%-8d %-6d %-10s %-10s %-9t %-5d %-5s\n", r.DomainID, r.VCPUID, r.Period, r.Slice, r.Sporadic, r.CPUA, cpub)
			}
			return nil
		},
	}
}

func newDebugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Toggle the daemon's debug-ring collect/print state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(socketPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.DebugToggle()
		},
	}
}

func newDumpCmd() *cobra.Command {
	var pcpu int
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the next chunk of a PCPU's buffered debug-ring entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(socketPath)
			if err != nil {
				return err
			}
			defer c.Close()
			entries, err := c.Dump(pcpu)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("domain=%d vcpu=%d now=%s quantum=%s local_cputime=%s allocated=%s\n",
					e.Domain, e.VCPU, e.NowDelta, e.Quantum, e.LocalCPUTime, e.Allocated)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pcpu, "pcpu", 0, "PCPU index to dump")
	return cmd
}

func parseIDs(args []string) (domain, vcpu int, err error) {
	if _, err = fmt.Sscanf(args[0], "%d", &domain); err != nil {
		return 0, 0, fmt.Errorf("invalid domain id %q: %w", args[0], err)
	}
	if _, err = fmt.Sscanf(args[1], "%d", &vcpu); err != nil {
		return 0, 0, fmt.Errorf("invalid vcpu id %q: %w", args[1], err)
	}
	return domain, vcpu, nil
}
