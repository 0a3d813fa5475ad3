package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/apex/log"
	"github.com/caarlos0/ctrlc"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"github.com/zhuweiyou/rttiscanner"
	"gopkg.in/yaml.v3"
)

var colorClass = color.New(color.Bold, color.FgHiMagenta).SprintFunc()
var colorAddr = color.New(color.Faint).SprintFunc()
var colorBase = color.New(color.FgHiBlue).SprintFunc()

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	dumpCmd.Flags().Uint64("page-size", rttiscanner.DefaultPageSize, "Scan page size in bytes")
	dumpCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml, dot)")
	dumpCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "yaml", "dot"}, cobra.ShellCompDirectiveNoFileComp
	})
	dumpCmd.Flags().StringP("filter", "r", "", "Only keep classes matching regex")
	dumpCmd.Flags().Bool("demangle", false, "Print undecorated class names")
	dumpCmd.Flags().StringP("output", "o", "", "Write output to file")
	dumpCmd.Flags().Bool("no-progress", false, "Hide the progress bar")

	viper.BindPFlag("dump.workers", dumpCmd.Flags().Lookup("workers"))
	viper.BindPFlag("dump.page-size", dumpCmd.Flags().Lookup("page-size"))
	viper.BindPFlag("dump.format", dumpCmd.Flags().Lookup("format"))
	viper.BindPFlag("dump.filter", dumpCmd.Flags().Lookup("filter"))
	viper.BindPFlag("dump.demangle", dumpCmd.Flags().Lookup("demangle"))
	viper.BindPFlag("dump.output", dumpCmd.Flags().Lookup("output"))
	viper.BindPFlag("dump.no-progress", dumpCmd.Flags().Lookup("no-progress"))
}

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump [MODULE]",
	Short: "Dump the RTTI class hierarchy of a module",
	Example: `  rttiscan dump -n game.exe game.exe
  rttiscan dump -i game.bin -f dot -o classes.dot`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter *regexp.Regexp
		if pattern := viper.GetString("dump.filter"); pattern != "" {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("invalid --filter regex: %w", err)
			}
			filter = re
		}

		format := viper.GetString("dump.format")
		if !slices.Contains([]string{"table", "json", "yaml", "dot"}, format) {
			return fmt.Errorf("unknown --format %q", format)
		}

		t, err := openTarget()
		if err != nil {
			return err
		}
		defer t.Close()

		module, err := moduleArg(args, t)
		if err != nil {
			return err
		}

		conf := &rttiscanner.DumpConfig{
			Workers:  viper.GetInt("dump.workers"),
			PageSize: viper.GetUint64("dump.page-size"),
		}

		var p *mpb.Progress
		if !viper.GetBool("dump.no-progress") {
			p = mpb.New(mpb.WithWidth(80), mpb.WithOutput(os.Stderr))
			bar := p.New(0,
				mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
				mpb.PrependDecorators(
					decor.Name("candidates ", decor.WC{C: decor.DindentRight}),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO), "✅ "),
				),
			)
			conf.OnProgress = func(done, total int) {
				bar.SetTotal(int64(total), false)
				bar.Increment()
			}
			defer func() {
				bar.SetTotal(-1, true)
				p.Wait()
			}()
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var infos []rttiscanner.RTTIInfo
		start := time.Now()
		if err := ctrlc.Default.Run(ctx, func() error {
			res, derr := rttiscanner.Dump(ctx, t, module, conf)
			infos = res
			return derr
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Exiting...")
				return nil
			}
			return err
		}

		if filter != nil {
			infos = slices.DeleteFunc(infos, func(info rttiscanner.RTTIInfo) bool {
				return !filter.MatchString(info.TypeName) && !filter.MatchString(rttiscanner.Undecorate(info.TypeName))
			})
		}
		slices.SortFunc(infos, func(a, b rttiscanner.RTTIInfo) int {
			return strings.Compare(a.TypeName, b.TypeName)
		})

		log.WithFields(log.Fields{
			"module":  module,
			"classes": len(infos),
			"took":    time.Since(start).Round(time.Millisecond),
		}).Info("Dumped RTTI")

		var w io.Writer = os.Stdout
		if out := viper.GetString("dump.output"); out != "" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
			color.NoColor = true
		}

		return writeInfos(w, infos, format, viper.GetBool("dump.demangle"))
	},
}

func writeInfos(w io.Writer, infos []rttiscanner.RTTIInfo, format string, demangle bool) error {
	if demangle {
		for i := range infos {
			infos[i].TypeName = rttiscanner.Undecorate(infos[i].TypeName)
			for j, base := range infos[i].BaseClasses {
				infos[i].BaseClasses[j] = rttiscanner.Undecorate(base)
			}
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(infos)
	case "dot":
		h, err := rttiscanner.NewHierarchy(infos)
		if err != nil {
			return err
		}
		return h.WriteDOT(w)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, info := range infos {
		var bases []string
		if len(info.BaseClasses) > 1 {
			bases = info.BaseClasses[1:]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			colorAddr(info.VTable),
			colorClass(info.TypeName),
			colorBase(strings.Join(bases, ", ")),
		)
	}
	return tw.Flush()
}
