// Command snpinfo summarizes and converts Touchstone S-parameter
// files.
//
// Usage:
//
//	snpinfo [flags] file.s2p ...
//
// Without -convert it prints one summary row per file. With
// -convert it re-encodes the first file to stdout in the requested
// data format.
//
// Examples:
//
//	snpinfo filter.s2p
//	snpinfo -ports 3 coupler.dat
//	snpinfo -convert ri -unit mhz filter.s2p > filter_ri.s2p
package main

import (
	"flag"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-rf/network"
	"github.com/cwbudde/algo-rf/touchstone"
)

func main() {
	ports := flag.Int("ports", 0, "port count, for files without a .sNp extension")
	convert := flag.String("convert", "", "re-encode to stdout with this data format (ma, db, ri)")
	unit := flag.String("unit", "", "frequency unit for -convert output (hz, khz, mhz, ghz)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: snpinfo [flags] file.sNp ...\n\n")
		fmt.Fprintf(os.Stderr, "Summarizes Touchstone S-parameter files, or re-encodes them\n")
		fmt.Fprintf(os.Stderr, "with -convert. The port count is taken from the .sNp extension\n")
		fmt.Fprintf(os.Stderr, "unless -ports is given.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  snpinfo filter.s2p amp.s2p\n")
		fmt.Fprintf(os.Stderr, "  snpinfo -convert ri -unit mhz filter.s2p\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *convert != "" {
		if err := convertFile(flag.Arg(0), *ports, *convert, *unit); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", flag.Arg(0), err)
			os.Exit(1)
		}
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File\tPorts\tPoints\tStart\tStop\tFormat\tZ0 [Ohm]\tWorst RL [dB]\tNotes\n")
	fmt.Fprintf(tw, "----\t-----\t------\t-----\t----\t------\t--------\t-------------\t-----\n")

	exit := 0
	for _, path := range flag.Args() {
		if err := summarize(tw, path, *ports); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", path, err)
			exit = 1
		}
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
		exit = 1
	}
	os.Exit(exit)
}

func parseFile(path string, ports int) (*touchstone.File, error) {
	if ports == 0 {
		n, err := touchstone.PortsFromFilename(path)
		if err != nil {
			return nil, fmt.Errorf("%v (use -ports)", err)
		}
		ports = n
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return touchstone.Parse(f, ports)
}

func summarize(tw *tabwriter.Writer, path string, ports int) error {
	file, err := parseFile(path, ports)
	if err != nil {
		return err
	}
	n := file.Network

	notes := ""
	if file.Sorted {
		notes = "re-sorted"
	}
	if len(n.NoiseData()) > 0 {
		if notes != "" {
			notes += ", "
		}
		notes += fmt.Sprintf("%d noise lines", len(n.NoiseData()))
	}

	freqs := n.Frequencies()
	fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%g\t%s\t%s\n",
		path,
		n.Ports(),
		n.NumFreqs(),
		formatFreq(freqs[0]),
		formatFreq(freqs[len(freqs)-1]),
		file.Options.Format,
		file.Options.Z0,
		worstReturnLoss(n),
		notes,
	)
	return nil
}

// worstReturnLoss returns the smallest reflection magnitude margin
// across all ports and frequencies, in dB (smaller is worse-matched),
// or "-" for a perfectly matched network.
func worstReturnLoss(n *network.Network) string {
	worst := math.Inf(1)
	for k := 0; k < n.NumFreqs(); k++ {
		for p := 0; p < n.Ports(); p++ {
			mag := cmplx.Abs(n.SEntry(k, p, p))
			if mag == 0 {
				continue
			}
			if rl := -20 * math.Log10(mag); rl < worst {
				worst = rl
			}
		}
	}
	if math.IsInf(worst, 1) {
		return "-"
	}
	return fmt.Sprintf("%.1f", worst)
}

func formatFreq(f float64) string {
	switch {
	case f >= 1e9:
		return fmt.Sprintf("%g GHz", f/1e9)
	case f >= 1e6:
		return fmt.Sprintf("%g MHz", f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("%g kHz", f/1e3)
	}
	return fmt.Sprintf("%g Hz", f)
}

func convertFile(path string, ports int, format, unit string) error {
	file, err := parseFile(path, ports)
	if err != nil {
		return err
	}

	f, ok := touchstone.ParseFormat(format)
	if !ok {
		return fmt.Errorf("unknown format %q (want ma, db or ri)", format)
	}
	opts := []touchstone.EncodeOption{touchstone.WithFormat(f)}
	if unit != "" {
		u, ok := touchstone.ParseUnit(unit)
		if !ok {
			return fmt.Errorf("unknown unit %q (want hz, khz, mhz or ghz)", unit)
		}
		opts = append(opts, touchstone.WithUnit(u))
	}
	return touchstone.Encode(os.Stdout, file.Network, opts...)
}
