// Command livestt-cli runs a recognition session from the terminal. The
// transcript is printed as it changes and notifications are mirrored to the
// desktop.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"livestt/internal/bootstrap"
	"livestt/internal/domain"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		desktop     bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file (overrides LIVESTT_CONFIG)")
	flag.BoolVar(&desktop, "desktop-notify", true, "Show notifications on the desktop as well as the terminal")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}
	if configPath != "" {
		_ = os.Setenv("LIVESTT_CONFIG", configPath)
	}

	term := newTerminal(os.Stdout, desktop)
	services, err := bootstrap.Build(term, term, systemClipboard{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	term.printHelp()
	if err := run(ctx, os.Stdin, term, services); err != nil {
		services.Logger.Error("terminal session ended with error", zap.Error(err))
	}
	if err := services.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		os.Exit(1)
	}
}

// run reads one command per line until quit, EOF or cancellation.
func run(ctx context.Context, in io.Reader, term *terminal, services *bootstrap.Services) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			cmd := parseCommand(line)
			if cmd == commandQuit {
				return nil
			}
			if err := execute(ctx, cmd, term, services); err != nil {
				term.printf("! %v\n", err)
			}
		}
	}
}

type command int

const (
	commandUnknown command = iota
	commandNone
	commandToggle
	commandStop
	commandAbort
	commandCopy
	commandClear
	commandStatus
	commandHelp
	commandQuit
)

func parseCommand(line string) command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return commandNone
	case "r", "record":
		return commandToggle
	case "s", "stop":
		return commandStop
	case "a", "abort":
		return commandAbort
	case "c", "copy":
		return commandCopy
	case "x", "clear":
		return commandClear
	case "p", "status":
		return commandStatus
	case "h", "help", "?":
		return commandHelp
	case "q", "quit", "exit":
		return commandQuit
	default:
		return commandUnknown
	}
}

func execute(ctx context.Context, cmd command, term *terminal, services *bootstrap.Services) error {
	switch cmd {
	case commandNone:
		return nil
	case commandToggle:
		_, err := services.Actions.Toggle(ctx)
		return err
	case commandStop:
		return services.Session.Stop()
	case commandAbort:
		err := services.Session.Abort()
		if errors.Is(err, domain.ErrNoActiveSession) {
			return nil
		}
		return err
	case commandCopy:
		return quiet(services.Actions.Copy(ctx))
	case commandClear:
		return quiet(services.Actions.Clear())
	case commandStatus:
		term.printStatus(services.Session.Status())
		return nil
	case commandHelp:
		term.printHelp()
		return nil
	default:
		return errors.New("unknown command, type h for help")
	}
}

// quiet drops errors already reported as notifications.
func quiet(err error) error {
	if errors.Is(err, domain.ErrEmptyTranscript) || errors.Is(err, domain.ErrClipboard) {
		return nil
	}
	return err
}
