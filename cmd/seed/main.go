// Package main seeds the base elements every player starts with.
//
// Elements come from an embedded YAML file unless --file is given. The
// command is idempotent: existing elements are skipped.
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"craftbot.io/craftbot/internal/app/modules"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/uow"
)

//go:embed elements.yaml
var defaultElements []byte

// seedFile is the YAML layout of a seed file.
type seedFile struct {
	Elements []seedElement `yaml:"elements"`
}

type seedElement struct {
	Name  string `yaml:"name"`
	Emoji string `yaml:"emoji"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	file := flags.StringP("file", "f", "", "YAML file with base elements (defaults to the built-in set)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	elements, err := loadElements(*file)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init infrastructure: %w", err)
	}
	defer infra.Close()

	craft, err := modules.NewCraftModule(infra)
	if err != nil {
		return fmt.Errorf("init craft module: %w", err)
	}
	craft.RegisterSubscribers(infra.Bus)

	logger.Info("Starting element seeding...", zap.Int("elements", len(elements)))
	created, err := seedElements(ctx, infra.Bus, infra.UnitOfWork, elements, cfg.Bus.RequestTimeout)
	if err != nil {
		return err
	}
	logger.Info("Element seeding completed",
		zap.Int("created", created),
		zap.Int("skipped", len(elements)-created),
	)
	return nil
}

// loadElements reads path, or the embedded defaults when path is empty.
func loadElements(path string) ([]seedElement, error) {
	raw := defaultElements
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		raw = b
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(f.Elements) == 0 {
		return nil, fmt.Errorf("seed file has no elements")
	}
	return f.Elements, nil
}

// seedElements creates base elements in one unit of work and returns how
// many were new.
func seedElements(ctx context.Context, b *bus.Bus, u *uow.UnitOfWork, elements []seedElement, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	created := 0
	err := u.Start(ctx, func(ctx context.Context) error {
		for _, e := range elements {
			evt := bus.NewEvent(domain.TopicElementCreate, bus.Record(domain.ElementCreatePayload{
				Name:   e.Name,
				Emoji:  e.Emoji,
				IsBase: true,
			}))
			_, err := bus.Call[[]domain.Element](ctx, b, evt, timeout)
			if errors.Is(err, apperrors.ErrEntityAlreadyExists) {
				logger.Info("Element already exists, skipping", zap.String("element", e.Name))
				continue
			}
			if err != nil {
				return fmt.Errorf("create element %s: %w", e.Name, err)
			}
			created++
			logger.Info("Seeded base element", zap.String("element", e.Name))
		}
		return nil
	})
	return created, err
}
