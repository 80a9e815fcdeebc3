// Command dpwrapd is the DP-Wrap scheduling daemon: one goroutine per
// PCPU driving internal/sched.Scheduler.Dispatch, plus a unix-socket
// admin server for the putinfo/getinfo/list/debug surface. Adapted from
// cmd/perflock's daemon.go doDaemon/Server.Serve accept loop.
package main

import (
	"flag"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/rtsched/dpwrap/internal/cpuset"
	"github.com/rtsched/dpwrap/internal/sched"
)

func main() {
	flagConfig := flag.String("config", "", "path to TOML config file")
	flagSocket := flag.String("socket", "", "override the config's admin socket path")
	flagPin := flag.Bool("pin", false, "pin each PCPU dispatcher goroutine to its OS CPU via sched_setaffinity")
	flag.Parse()

	cfg := sched.DefaultConfig()
	if *flagConfig != "" {
		loaded, err := sched.LoadConfig(*flagConfig)
		if err != nil {
			zerolog.New(os.Stderr).Fatal().Err(err).Msg("loading config")
		}
		cfg = loaded
	}
	if *flagSocket != "" {
		cfg.SocketPath = *flagSocket
	}

	log := sched.NewLogger(cfg.LogLevel)

	if *flagPin {
		allowed, err := cpuset.CPUSetOfPid(os.Getpid())
		if err != nil {
			log.Warn().Err(err).Msg("reading allowed cpuset, pinning may fail")
		} else if allowed.Count() < cfg.NumPCPUs {
			log.Fatal().Str("allowed", cpuset.String(allowed)).Int("num_pcpus", cfg.NumPCPUs).
				Msg("fewer CPUs available to this process than configured PCPUs")
		}
	}

	sc := sched.NewScheduler(cfg, clock.New(), log)

	if err := sc.AdmitDefault(sched.VCPUKey{DomainID: 0, VCPUID: 0}, true); err != nil {
		log.Fatal().Err(err).Msg("admitting dom0 vcpu0 at default reservation")
	}

	os.Remove(cfg.SocketPath)
	l, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		log.Fatal().Err(err).Msg("listening on admin socket")
	}
	defer l.Close()
	if err := os.Chmod(cfg.SocketPath, 0777); err != nil {
		log.Fatal().Err(err).Msg("chmod admin socket")
	}

	for i := 0; i < cfg.NumPCPUs; i++ {
		go runPCPU(sc, i, *flagPin, log)
	}

	log.Info().Str("socket", cfg.SocketPath).Int("pcpus", cfg.NumPCPUs).Msg("dpwrapd listening")
	for {
		conn, err := l.Accept()
		if err != nil {
			log.Fatal().Err(err).Msg("accept")
		}
		go func(c net.Conn) {
			defer c.Close()
			NewServer(c, sc).Serve(log)
		}(conn)
	}
}

// runPCPU drives one PCPU's dispatch loop: call Dispatch, sleep for the
// returned quantum or wake early on the PCPU's signal channel, repeat.
// Grounded on the per-PCPU interrupt-driven loop sc_do_schedule is called
// from in sched_rtvirt.c, reimagined as a goroutine since this CORE has
// no interrupt context of its own.
func runPCPU(sc *sched.Scheduler, index int, pin bool, log zerolog.Logger) {
	if pin {
		runtime.LockOSThread()
		var set unix.CPUSet
		set.Set(index)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			log.Warn().Err(err).Int("pcpu", index).Msg("pinning PCPU goroutine failed, continuing unpinned")
		}
	}

	p := sc.PCPUs[index]
	for {
		result := sc.Dispatch(index)
		quantum := result.Quantum
		if quantum <= 0 {
			quantum = sched.MinQuantum
		}
		timer := time.NewTimer(quantum)
		select {
		case <-timer.C:
		case <-p.Signal:
			timer.Stop()
		}
	}
}
