package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sessionx "github.com/bionicotaku/fraudguard-sessionx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const usage = `usage: sessionctl [flags] <command> [command flags]

commands:
  login    -email -password           exchange credentials for a session
  signup   -email -password -name -org register and start a session
  status                              restore the stored session and evaluate its expiry
  whoami                              restore the stored session and print the user
  logout                              clear the stored session
  watch    -interval                  restore the session and report expiry signals

Sessions persist across runs only with store.driver sqlite or redis
(env SESSIONX_STORE_DRIVER).
`

func main() {
	envPath := defaultEnvPath()
	configPath := flag.String("config", os.Getenv("SESSIONX_CONFIG"), "Optional YAML config (env SESSIONX_CONFIG)")
	envFile := flag.String("env", envPath, "Optional .env file (default .env)")
	timeout := flag.Duration("timeout", 15*time.Second, "Timeout for backend calls")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("warning: load %s: %v", *envFile, err)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := sessionx.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := sessionx.NewLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	metrics, err := sessionx.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		logger.Fatal("metrics", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nav := sessionx.NavigatorFunc(func(route string) {
		logger.Info("navigate", zap.String("route", route))
	})
	ctrl, store, err := sessionx.Open(ctx, *cfg, logger, metrics, sessionx.WithNavigator(nav))
	if err != nil {
		logger.Fatal("open session controller", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	args := flag.Args()[1:]
	switch cmd := flag.Arg(0); cmd {
	case "login":
		err = runLogin(ctx, ctrl, args, *timeout)
	case "signup":
		err = runSignup(ctx, ctrl, args, *timeout)
	case "status":
		err = runStatus(ctx, ctrl, *timeout)
	case "whoami":
		err = runWhoami(ctx, ctrl, *timeout)
	case "logout":
		ctrl.Logout()
		fmt.Println("logged out")
	case "watch":
		err = runWatch(ctx, ctrl, args, *timeout)
	default:
		flag.Usage()
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func runLogin(ctx context.Context, ctrl *sessionx.Controller, args []string, timeout time.Duration) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", os.Getenv("SESSIONX_EMAIL"), "Account email (env SESSIONX_EMAIL)")
	password := fs.String("password", os.Getenv("SESSIONX_PASSWORD"), "Account password (env SESSIONX_PASSWORD)")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ctrl.Login(ctx, *email, *password); err != nil {
		return describe(err)
	}
	printSession(ctrl)
	return nil
}

func runSignup(ctx context.Context, ctrl *sessionx.Controller, args []string, timeout time.Duration) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	email := fs.String("email", os.Getenv("SESSIONX_EMAIL"), "Account email (env SESSIONX_EMAIL)")
	password := fs.String("password", os.Getenv("SESSIONX_PASSWORD"), "Account password (env SESSIONX_PASSWORD)")
	name := fs.String("name", "", "Display name")
	org := fs.String("org", os.Getenv("SESSIONX_ORGANIZATION"), "Organization name (env SESSIONX_ORGANIZATION)")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := ctrl.Signup(ctx, sessionx.SignupRequest{
		Email:            *email,
		Password:         *password,
		Name:             *name,
		OrganizationName: *org,
	})
	if err != nil {
		return describe(err)
	}
	printSession(ctrl)
	return nil
}

func runStatus(ctx context.Context, ctrl *sessionx.Controller, timeout time.Duration) error {
	if err := restore(ctx, ctrl, timeout); err != nil {
		return err
	}
	printSession(ctrl)
	status := ctrl.Policy().Evaluate(ctrl.Session().Token)
	fmt.Printf("expires      : %s\n", status.ExpiresAt)
	fmt.Printf("minutes_left : %d\n", status.MinutesLeft)
	fmt.Printf("warn         : %t\n", status.Warn)
	fmt.Printf("force_logout : %t\n", status.ForceLogout)
	return nil
}

func runWhoami(ctx context.Context, ctrl *sessionx.Controller, timeout time.Duration) error {
	if err := restore(ctx, ctrl, timeout); err != nil {
		return err
	}
	user := ctrl.Session().User
	fmt.Printf("id           : %s\n", user.ID)
	fmt.Printf("email        : %s\n", user.Email)
	if user.Name != "" {
		fmt.Printf("name         : %s\n", user.Name)
	}
	if user.OrganizationName != "" {
		fmt.Printf("organization : %s\n", user.OrganizationName)
	}
	return nil
}

func runWatch(ctx context.Context, ctrl *sessionx.Controller, args []string, timeout time.Duration) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", time.Minute, "How often to evaluate the token")
	_ = fs.Parse(args)

	if err := restore(ctx, ctrl, timeout); err != nil {
		return err
	}
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctrl.Watch(watchCtx, *interval, func(status sessionx.Status) {
		switch {
		case status.ForceLogout:
			fmt.Println("session ended: token expired or inside the grace window")
			cancel()
		case status.Warn:
			fmt.Printf("session expires in %d minutes (%s)\n", status.MinutesLeft, status.ExpiresAt)
		}
	})
	return nil
}

func restore(ctx context.Context, ctrl *sessionx.Controller, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if state := ctrl.Initialize(ctx); state != sessionx.StateAuthenticated {
		return errors.New("no valid session; run sessionctl login")
	}
	return nil
}

func printSession(ctrl *sessionx.Controller) {
	session := ctrl.Session()
	fmt.Println("== Session ==")
	fmt.Printf("state        : %s\n", session.State)
	if session.User != nil {
		fmt.Printf("user         : %s <%s>\n", session.User.ID, session.User.Email)
	}
}

func describe(err error) error {
	var e *sessionx.Error
	if errors.As(err, &e) && e.Status != 0 {
		return fmt.Errorf("%s (HTTP %d)", e.Message, e.Status)
	}
	return err
}

func defaultEnvPath() string {
	if path := os.Getenv("SESSIONX_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

// loadEnvFile exports the entries of a dotenv file without overriding
// variables that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	for key, value := range v.AllSettings() {
		name := strings.ToUpper(key)
		if _, present := os.LookupEnv(name); present {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(value)); err != nil {
			log.Printf("warning: set env %s: %v", name, err)
		}
	}
	return nil
}
