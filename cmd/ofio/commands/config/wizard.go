package config

import (
	"fmt"

	"github.com/marmos91/ofio/internal/cli/prompt"
	"github.com/marmos91/ofio/pkg/aio"
	"github.com/marmos91/ofio/pkg/config"
)

var backendOptions = []prompt.SelectOption{
	{Label: "local", Value: "local", Description: "Files under a directory on this machine"},
	{Label: "memory", Value: "memory", Description: "Process memory, lost on exit"},
	{Label: "s3", Value: "s3", Description: "An S3 bucket (AWS, MinIO, Localstack)"},
	{Label: "badger", Value: "badger", Description: "Fixed-size blocks in a BadgerDB database"},
}

var shortWriteOptions = []prompt.SelectOption{
	{Label: "fail", Value: aio.ShortWriteFail.String(), Description: "A write that stores fewer bytes than asked is an error"},
	{Label: "allow", Value: aio.ShortWriteAllow.String(), Description: "Short writes succeed and report the bytes stored"},
}

// runWizard asks for the settings most users change and stores the answers
// in cfg.
func runWizard(cfg *config.Config) error {
	backend, err := prompt.Select("Storage backend", backendOptions, cfg.Backend.Type)
	if err != nil {
		return err
	}
	cfg.Backend.Type = backend

	switch backend {
	case "local":
		if cfg.Backend.Local.Root, err = prompt.Input("Root directory", cfg.Backend.Local.Root); err != nil {
			return err
		}
	case "s3":
		if err := askS3(&cfg.Backend.S3); err != nil {
			return err
		}
	case "badger":
		if err := askBadger(&cfg.Backend.Badger); err != nil {
			return err
		}
	}

	if cfg.Pipeline.Depth, err = prompt.InputIntRange("Pipeline depth", cfg.Pipeline.Depth, 1, aio.MaxDepth); err != nil {
		return err
	}
	if cfg.Pipeline.ChunkSize, err = prompt.InputSize("Chunk size", cfg.Pipeline.ChunkSize); err != nil {
		return err
	}
	if cfg.Pipeline.ShortWrites, err = prompt.Select("Short writes", shortWriteOptions, cfg.Pipeline.ShortWrites); err != nil {
		return err
	}

	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}
	return nil
}

func askS3(cfg *config.S3BackendConfig) error {
	var err error
	if cfg.Bucket, err = prompt.InputRequired("Bucket"); err != nil {
		return err
	}
	if cfg.Region, err = prompt.Input("Region", cfg.Region); err != nil {
		return err
	}
	if cfg.Endpoint, err = prompt.InputOptional("Endpoint"); err != nil {
		return err
	}
	if cfg.Endpoint != "" {
		if cfg.ForcePathStyle, err = prompt.Confirm("Use path-style addressing", true); err != nil {
			return err
		}
	}
	if cfg.AccessKeyID, err = prompt.InputOptional("Access key ID (empty uses the default credential chain)"); err != nil {
		return err
	}
	if cfg.AccessKeyID != "" {
		if cfg.SecretAccessKey, err = prompt.Password("Secret access key"); err != nil {
			return err
		}
	}
	return nil
}

func askBadger(cfg *config.BadgerBackendConfig) error {
	var err error
	if cfg.InMemory, err = prompt.Confirm("Keep the database in memory", false); err != nil {
		return err
	}
	if !cfg.InMemory {
		if cfg.Path, err = prompt.InputRequired("Database directory"); err != nil {
			return err
		}
	}
	return nil
}
