package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/caarlos0/ctrlc"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zhuweiyou/rttiscanner"
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolP("string", "s", false, "Treat PATTERN as a string (? matches any byte)")
	scanCmd.Flags().Int("length", 0, "Pad a --string pattern with wildcards up to this many bytes")
	scanCmd.Flags().StringP("module", "m", "", "Only scan this module")
	scanCmd.Flags().Bool("first", false, "Stop at the first match")
	scanCmd.Flags().Int("limit", 100, "Maximum number of matches to print (0 for all)")
	scanCmd.Flags().Uint64("page-size", rttiscanner.DefaultPageSize, "Scan page size in bytes")

	viper.BindPFlag("scan.string", scanCmd.Flags().Lookup("string"))
	viper.BindPFlag("scan.length", scanCmd.Flags().Lookup("length"))
	viper.BindPFlag("scan.module", scanCmd.Flags().Lookup("module"))
	viper.BindPFlag("scan.first", scanCmd.Flags().Lookup("first"))
	viper.BindPFlag("scan.limit", scanCmd.Flags().Lookup("limit"))
	viper.BindPFlag("scan.page-size", scanCmd.Flags().Lookup("page-size"))
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <PATTERN>",
	Short: "Search target memory for a byte pattern",
	Example: `  rttiscan scan -n game.exe "48 8B 05 ?? ?? ?? ?? 48 85 C0"
  rttiscan scan -p 1234 -s "type_info" -m game.exe`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := args[0]
		if viper.GetBool("scan.string") {
			pattern = rttiscanner.StringToPattern(pattern, viper.GetInt("scan.length"))
		}
		// syntax errors before touching the target
		compiled, err := rttiscanner.ParsePattern(pattern)
		if err != nil {
			return err
		}
		if compiled.Len() == 0 {
			return fmt.Errorf("empty pattern")
		}

		t, err := openTarget()
		if err != nil {
			return err
		}
		defer t.Close()

		limit := viper.GetInt("scan.limit")
		first := viper.GetBool("scan.first")
		pageSize := viper.GetUint64("scan.page-size")

		var matchCount int
		handler := func(match rttiscanner.Match) bool {
			matchCount++
			if limit == 0 || matchCount <= limit {
				fmt.Printf("%s  %s  %s\n",
					color.New(color.Faint).Sprint(match.Address),
					strings.ToLower(rttiscanner.BytesToPattern(match.Data)),
					formatForConsole(match.Content(), 50),
				)
			}
			return !first
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := ctrlc.Default.Run(ctx, func() error {
			if name := viper.GetString("scan.module"); name != "" {
				return scanModule(t, name, compiled, pageSize, first, handler)
			}
			return rttiscanner.NewScanner(t).Scan(ctx, rttiscanner.ScanOptions{
				Pattern:  pattern,
				PageSize: pageSize,
				Handler:  handler,
			})
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Exiting...")
				return nil
			}
			return err
		}

		if limit > 0 && matchCount > limit {
			log.Infof("%d more matches not shown", matchCount-limit)
		}
		log.WithField("matches", matchCount).Info("Scan complete")

		return nil
	},
}

func scanModule(t rttiscanner.Target, name string, pattern *rttiscanner.Pattern, pageSize uint64, first bool, handler rttiscanner.MatchHandler) error {
	mod, err := t.FindModule(name)
	if err != nil {
		return err
	}
	addrs := rttiscanner.RemoteSearchPattern(t, mod.Base, mod.Size, pageSize, pattern, first)
	for _, addr := range addrs {
		data := make([]byte, pattern.Len())
		if err := t.ReadMemory(addr, data); err != nil {
			continue
		}
		if !handler(rttiscanner.Match{Address: addr, Data: data}) {
			break
		}
	}
	return nil
}

// formatForConsole 格式化字符串用于控制台显示，将换行符替换为\n并截断
func formatForConsole(s string, maxLen int) string {
	// 将换行符、回车符等替换为\n显示
	display := strings.ReplaceAll(s, "\n", "\\n")
	display = strings.ReplaceAll(display, "\r", "\\r")
	display = strings.ReplaceAll(display, "\t", "\\t")

	// 截断字符串
	return truncateString(display, maxLen)
}

// truncateString 截断字符串用于显示
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
