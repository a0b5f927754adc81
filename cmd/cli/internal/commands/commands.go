package commands

import (
	"fmt"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/client"
)

type Globals struct {
	Debug   bool
	Version string
}

// ClientFlags are shared by the commands that call the server.
type ClientFlags struct {
	Server  string        `help:"Server URL" default:"http://localhost:8080" env:"CAPKI_SERVER"`
	APIKey  string        `help:"shared secret sent in the Authorization header" env:"CAPKI_API_KEY"`
	Timeout time.Duration `help:"request timeout" default:"30s"`
}

func (f ClientFlags) newClient(globals *Globals) (*client.Client, error) {
	level := zerolog.InfoLevel
	if globals.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}

	return client.New(client.Config{
		ServerURL: f.Server,
		Timeout:   f.Timeout,
		APIKey:    f.APIKey,
		Debug:     globals.Debug,
	}, connect.WithInterceptors(otelInterceptor)), nil
}

// writeFile writes data to path, or to stdout when path is "-".
func writeFile(path string, data []byte, perm os.FileMode) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
