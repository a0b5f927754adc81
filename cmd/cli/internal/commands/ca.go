package commands

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/pki"
)

type CACmd struct {
	ClientFlags `embed:""`

	Output string `help:"file to write the CA certificate to, - for stdout" short:"o" default:"ca-cert.crt"`
}

func (c *CACmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := c.newClient(globals)
	if err != nil {
		return err
	}

	caPEM, err := cl.GetCA(ctx)
	if err != nil {
		return err
	}

	// refuse to save something that is not a certificate
	caCert, err := pki.DecodeCertificate(caPEM)
	if err != nil {
		return err
	}

	if err := writeFile(c.Output, caPEM, 0o644); err != nil {
		return err
	}

	log.Info().Str("subject", caCert.Subject.String()).Str("file", c.Output).Msg("saved CA certificate")
	return nil
}
