// Command hislip-monitor is the terminal dashboard client: it connects to
// a running hislipd's monitoring server and watches session events live.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ksugimoto/hislipd/monitor/tui"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("hislip-monitor", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "hislip-monitor — watch HiSLIP session traffic in real-time\n\nUsage:\n  hislip-monitor [flags] <monitor-url>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("hislip-monitor %s\n", version)
		return
	}

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	if err := monitorFn(fs.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func monitorFn(addr string) error {
	p := tea.NewProgram(tui.New(addr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
