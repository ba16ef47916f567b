package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/persona-studio/backend/internal/config"
	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/storage"
)

type options struct {
	backend  string
	dir      string
	key      string
	logLevel string
}

// workspace is an opened persona store plus what must be closed after.
type workspace struct {
	kv    storage.KV
	store *persona.PersistentStore
}

func (w *workspace) close(ctx context.Context) error {
	flushErr := w.store.Close(ctx)
	if err := w.kv.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "personactl",
		Short:         "Manage the Persona Studio persona collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.applyDefaults(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.backend, "backend", "", "storage backend: sqlite or memory (default from STORAGE_BACKEND)")
	flags.StringVar(&opts.dir, "dir", "", "storage directory (default from STORAGE_DIR)")
	flags.StringVar(&opts.key, "key", "", "collection key (default from PERSONA_COLLECTION_KEY)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newListCmd(opts),
		newCreateCmd(opts),
		newDeleteCmd(opts),
		newSeedCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func (o *options) applyDefaults(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("backend") {
		o.backend = cfg.Storage.Backend
	}
	if !cmd.Flags().Changed("dir") {
		o.dir = cfg.Storage.Dir
	}
	if !cmd.Flags().Changed("key") {
		o.key = cfg.Storage.CollectionKey
	}
	return nil
}

func (o *options) open(ctx context.Context) (*workspace, error) {
	logger, err := logging.New(o.logLevel, "console")
	if err != nil {
		return nil, err
	}
	kv, err := storage.Open(o.backend, o.dir)
	if err != nil {
		return nil, err
	}
	return &workspace{kv: kv, store: persona.Open(ctx, kv, o.key, logger)}, nil
}

// withStore runs fn against an opened store and always flushes it.
func (o *options) withStore(ctx context.Context, fn func(*persona.PersistentStore) error) (err error) {
	ws, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ws.close(ctx); err == nil {
			err = closeErr
		}
	}()
	return fn(ws.store)
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List personas in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *persona.PersistentStore) error {
				return printTable(cmd.OutOrStdout(), store.List())
			})
		},
	}
}

func printTable(out io.Writer, items []persona.Persona) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tSUMMARY")
	for _, p := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Label(), p.Summary())
	}
	return tw.Flush()
}

func newCreateCmd(opts *options) *cobra.Command {
	var (
		strs    map[string]string
		labels  map[string]string
		lists   map[string]string
		numbers map[string]string
		bools   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a persona",
		Example: `  personactl create Kim --attr age=30s --labels skinType=건성 \
    --labels concerns=주름,탄력 --number moistureLevel=40`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := buildAttributes(strs, labels, lists, numbers, bools)
			if err != nil {
				return err
			}
			return opts.withStore(cmd.Context(), func(store *persona.PersistentStore) error {
				p, err := store.Create(cmd.Context(), args[0], attrs)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringToStringVar(&strs, "attr", nil, "free-text attribute key=value")
	flags.StringToStringVar(&labels, "label", nil, "single-choice attribute key=value")
	flags.StringToStringVar(&lists, "labels", nil, "multi-choice attribute key=a,b (comma separated)")
	flags.StringToStringVar(&numbers, "number", nil, "level attribute key=0..100")
	flags.StringToStringVar(&bools, "flag", nil, "boolean attribute key=true|false")
	return cmd
}

func buildAttributes(strs, labels, lists, numbers, bools map[string]string) (persona.Attributes, error) {
	attrs := persona.Attributes{}
	for key, value := range strs {
		attrs[key] = persona.String(value)
	}
	for key, value := range labels {
		attrs[key] = persona.Label(value)
	}
	for key, value := range lists {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		attrs[key] = persona.Labels(items...)
	}
	for key, value := range numbers {
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --number %s=%q: %w", key, value, err)
		}
		attrs[key] = persona.Number(n)
	}
	for key, value := range bools {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid --flag %s=%q: %w", key, value, err)
		}
		attrs[key] = persona.Bool(b)
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs, nil
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete personas by id; unknown ids are ignored",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *persona.PersistentStore) error {
				for _, id := range args {
					if err := store.Delete(cmd.Context(), id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add the demo personas that are not present yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *persona.PersistentStore) error {
				existing := map[string]bool{}
				for _, p := range store.List() {
					existing[p.Name] = true
				}

				added := 0
				for _, seed := range persona.Seed() {
					if existing[seed.Name] {
						continue
					}
					if _, err := store.Create(cmd.Context(), seed.Name, seed.Attributes); err != nil {
						return err
					}
					added++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d personas\n", added)
				return nil
			})
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the collection as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *persona.PersistentStore) error {
				data, err := yaml.Marshal(map[string]any{
					"schemaVersion": persona.SchemaVersion,
					"personas":      store.List(),
				})
				if err != nil {
					return fmt.Errorf("encode personas: %w", err)
				}
				if out == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported personas to %s\n", out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
