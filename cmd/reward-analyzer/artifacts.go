package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apartresearch/reward-analyzer/internal/tracking"
	"github.com/apartresearch/reward-analyzer/pkg/artifacts"
	"github.com/apartresearch/reward-analyzer/pkg/hparams"
)

func newArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Name, inspect and download published autoencoders",
	}
	cmd.AddCommand(newAliasesCmd(), newPathCmd(), newLoadCmd(), newVersionsCmd())
	return cmd
}

func newAliasesCmd() *cobra.Command {
	var preset, alias string
	cmd := &cobra.Command{
		Use:   "aliases POLICY",
		Short: "Print the aliases a policy's autoencoders are published with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hp, err := hparams.Preset(preset)
			if err != nil {
				return err
			}
			for _, a := range artifacts.Aliases(args[0], hp, alias) {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "hyperparameters", hparams.FullPreset,
		fmt.Sprintf("hyperparameter preset of the run %v", hparams.PresetNames()))
	cmd.Flags().StringVar(&alias, "alias", "", "extra alias")
	return cmd
}

func newPathCmd() *cobra.Command {
	var alias string
	cmd := &cobra.Command{
		Use:   "path POLICY",
		Short: "Print the full artifact path of a policy's autoencoders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initializeConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Tracking.Naming().Path(args[0], alias))
			return nil
		},
	}
	cmd.Flags().StringVar(&alias, "alias", artifacts.LatestAlias, "alias to address")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var (
		alias  string
		groups []string
	)
	cmd := &cobra.Command{
		Use:   "load POLICY|PATH",
		Short: "Download a policy's autoencoders and summarize them",
		Long: "Download the autoencoders of a policy, or of an explicit " +
			"<entity>/<project>/<name>:<alias> path given with --path.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byPath, _ := cmd.Flags().GetBool("path")
			keep, err := parseGroups(groups)
			if err != nil {
				return err
			}
			cfg, err := initializeConfig()
			if err != nil {
				return err
			}
			tracker, closeTracker, err := newTracker(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeTracker()

			loader := artifacts.NewLoader(cfg.Tracking.Naming(), tracker)
			var b artifacts.Bundle
			if byPath {
				p, perr := artifacts.ParseFullPath(args[0])
				if perr != nil {
					return perr
				}
				b, err = loader.LoadPath(cmd.Context(), p)
			} else {
				b, err = loader.Load(cmd.Context(), args[0], alias)
			}
			if err != nil {
				return err
			}
			writeBundle(cmd.OutOrStdout(), b, keep)
			return nil
		},
	}
	cmd.Flags().StringVar(&alias, "alias", artifacts.LatestAlias, "alias to load")
	cmd.Flags().Bool("path", false, "treat the argument as a full artifact path")
	cmd.Flags().StringSliceVar(&groups, "group", nil,
		fmt.Sprintf("only summarize these groups %v", artifacts.Groups))
	return cmd
}

// parseGroups returns the groups to show, in save order. No names means every group.
func parseGroups(names []string) ([]artifacts.Group, error) {
	if len(names) == 0 {
		return artifacts.Groups, nil
	}
	wanted := map[artifacts.Group]bool{}
	for _, name := range names {
		g, err := artifacts.ParseGroup(name)
		if err != nil {
			return nil, err
		}
		wanted[g] = true
	}
	var out []artifacts.Group
	for _, g := range artifacts.Groups {
		if wanted[g] {
			out = append(out, g)
		}
	}
	return out, nil
}

func writeBundle(w io.Writer, b artifacts.Bundle, groups []artifacts.Group) {
	table := newTable(w, "group", "name", "input size", "hidden size", "l1 coef", "tied", "weights")
	for _, g := range groups {
		names := make([]string, 0, len(b[g]))
		for name := range b[g] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			a := b[g][name]
			var size int
			for _, t := range a.State {
				size += 4 * len(t.Data)
			}
			table.Append([]string{
				string(g), name,
				strconv.Itoa(a.Kwargs.InputSize),
				strconv.Itoa(a.Kwargs.HiddenSize),
				strconv.FormatFloat(a.Kwargs.L1Coef, 'g', -1, 64),
				strconv.FormatBool(a.Kwargs.TiedWeights),
				units.HumanSize(float64(size)),
			})
		}
	}
	table.Render()
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions PROJECT NAME",
		Short: "List the versions of an artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initializeConfig()
			if err != nil {
				return err
			}
			tracker, closeTracker, err := newTracker(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeTracker()

			vs, err := tracker.Versions(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if len(vs) == 0 {
				return errors.Wrapf(tracking.ErrNotFound, "no versions of %s/%s", args[0], args[1])
			}
			writeVersions(cmd.OutOrStdout(), vs)
			return nil
		},
	}
}

func writeVersions(w io.Writer, vs []*tracking.ArtifactVersion) {
	table := newTable(w, "version", "aliases", "run", "created")
	for _, v := range vs {
		table.Append([]string{
			v.VersionAlias(), fmt.Sprint(v.Aliases), v.RunName, v.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
}
