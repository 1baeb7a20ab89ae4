package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/plustik/kutsche/internal/gateway"
	"github.com/plustik/kutsche/internal/gwlog"
	"github.com/plustik/kutsche/internal/kconfig"
)

func main() {
	os.Exit(run())
}

// run wires startup together and returns the process exit code: 0 on
// success/shutdown, 1 on config load failure, 2 on log file open failure,
// 3 when no listener could be bound, 4/5 on privilege-drop failure (uid
// then gid).
func run() int {
	configPath := flag.String("c", "/etc/kutsche.toml", "path to the kutsche configuration file")
	logPath := flag.String("log", "", "path to a log file (defaults to stderr)")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	logOut := os.Stderr
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return 2
		}
		defer f.Close()
		logOut = f
	}

	logger := gwlog.New(logOut, *debug)
	log := gwlog.Component(logger, "main")

	cfg, err := kconfig.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("could not load configuration")
		return 1
	}

	if code := dropPrivileges(cfg, log); code != 0 {
		return code
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := gateway.Serve(ctx, cfg, gwlog.Component(logger, "gateway")); err != nil {
		log.WithError(err).Error("gateway could not start")
		return 3
	}

	return 0
}

// dropPrivileges drops to cfg.EffectiveUser/EffectiveGroup if set, using
// the syscall package directly.
func dropPrivileges(cfg *kconfig.Config, log interface{ Errorf(string, ...interface{}) }) int {
	if cfg.EffectiveUser != "" {
		uid, err := strconv.Atoi(cfg.EffectiveUser)
		if err != nil {
			log.Errorf("invalid effective_user %q: %v", cfg.EffectiveUser, err)
			return 4
		}
		if err := syscall.Seteuid(uid); err != nil {
			log.Errorf("could not set effective uid: %v", err)
			return 4
		}
	}
	if cfg.EffectiveGroup != "" {
		gid, err := strconv.Atoi(cfg.EffectiveGroup)
		if err != nil {
			log.Errorf("invalid effective_group %q: %v", cfg.EffectiveGroup, err)
			return 5
		}
		if err := syscall.Setegid(gid); err != nil {
			log.Errorf("could not set effective gid: %v", err)
			return 5
		}
	}
	return 0
}
