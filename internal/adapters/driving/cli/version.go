package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/folio/internal/adapters/driven/corpus"
)

// Set at build time via -ldflags "-X .../cli.version=v1.2.0 -X .../cli.commit=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Long: `Print the folio version, the commit and toolchain it was built from,
and the corpus index format it reads and writes.`,
	Run: func(cmd *cobra.Command, _ []string) {
		info := currentBuild()
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			return
		}
		renderBuild(cmd.OutOrStdout(), info)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the version number only")
	rootCmd.AddCommand(versionCmd)
}

// buildInfo describes the running binary.
type buildInfo struct {
	Version     string
	Commit      string
	Date        string
	Modified    bool
	GoVersion   string
	Platform    string
	IndexFormat int
}

// currentBuild combines -ldflags values with the VCS stamp Go embeds in
// binaries built from a checkout. Explicit ldflags win.
func currentBuild() buildInfo {
	info := buildInfo{
		Version:     version,
		Commit:      commit,
		Date:        buildDate,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		IndexFormat: corpus.FormatVersion,
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func renderBuild(w io.Writer, b buildInfo) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("folio"), b.Version)
	c := b.Commit
	if b.Modified {
		c += " " + warningStyle.Render("(modified)")
	}
	fmt.Fprintf(w, "  Commit:       %s\n", c)
	fmt.Fprintf(w, "  Built:        %s\n", b.Date)
	fmt.Fprintf(w, "  Go:           %s\n", b.GoVersion)
	fmt.Fprintf(w, "  Platform:     %s\n", b.Platform)
	fmt.Fprintf(w, "  Index format: %d\n", b.IndexFormat)
}
