// qvpentool is a CLI utility for editing QvPen stroke exports.
package main

import (
	"errors"
	"flag"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/qvpen-tools/internal/config"
	"github.com/Faultbox/qvpen-tools/internal/edit"
	"github.com/Faultbox/qvpen-tools/internal/logger"
	"github.com/Faultbox/qvpen-tools/internal/session"
	"github.com/Faultbox/qvpen-tools/pkg/formats"
	"github.com/Faultbox/qvpen-tools/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "bake":
		err = cmdBake(args)
	case "trim":
		err = cmdTrim(args)
	case "normalize", "norm":
		err = cmdNormalize(args)
	case "validate", "check":
		err = cmdValidate(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`qvpentool - QvPen stroke export utility

Usage:
  qvpentool <command> [options] <file.json>

Commands:
  info <file.json>                  Show strokes, points and bounds
  bake [-t x,y,z] [-r x,y,z] [-s x,y,z] <file.json>
                                    Apply a transform to the point data
  trim [-pos x,y,z] [-rot x,y,z] [-size x,y,z] <file.json>
                                    Keep only points inside a box
  normalize <file.json>             Center the drawing on the origin
  validate <file.json>...           Check files against the QvPen schema

Rotations are in degrees. Without -size, trim uses a box covering 80% of
the drawing. Edited files are written to -o, or to the name stored in the
file when -o is not given.

Common options:
  -config <path>   Config file (default ./qvpen.yaml)
  -debug           Debug logging
  -log <path>      Also write JSON logs to this file
  -interpolate     Cut strokes at trim box faces
  -snap            Snap transforms to the grid increment

Examples:
  qvpentool info drawing.json
  qvpentool bake -t 0,1,0 -r 0,90,0 -o moved.json drawing.json
  qvpentool trim -pos 0,1,0 -size 2,2,2 -interpolate drawing.json`)
}

// setup loads config from the shared flags and starts the logger.
func setup(flags *config.Flags) (config.Config, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return config.Config{}, fmt.Errorf("logger: %w", err)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)
	return cfg, nil
}

// openSession creates a session and loads path into it.
func openSession(cfg config.Config, path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := session.New(cfg.Editing, logger.Log)
	if err := s.LoadJSON(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// writeResult exports the session to output, or to the session's export name
// next to the input file. It never overwrites the input implicitly.
func writeResult(s *session.Session, input, output string) error {
	if output == "" {
		output = filepath.Join(filepath.Dir(input), s.ExportFileName())
		if sameFile(input, output) {
			return fmt.Errorf("refusing to overwrite %s; pass -o", input)
		}
	}
	data, err := s.Export()
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return err
	}
	logger.Log.Info("export written", zap.String("path", output), zap.Int("bytes", len(data)))
	fmt.Printf("Wrote %s\n", output)
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: qvpentool info <file.json>")
	}
	if _, err := setup(flags); err != nil {
		return err
	}

	set, err := formats.LoadQvPen(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("File:      %s\n", fs.Arg(0))
	fmt.Printf("Name:      %s\n", set.FileName)
	if set.Timestamp != "" {
		fmt.Printf("Exported:  %s\n", set.Timestamp)
	}
	if set.TrimmedTimestamp != "" {
		fmt.Printf("Trimmed:   %s\n", set.TrimmedTimestamp)
	}
	fmt.Printf("Strokes:   %d\n", len(set.Strokes))
	fmt.Printf("Points:    %d\n", set.TotalPoints())

	bounds := set.Bounds()
	if !bounds.Empty {
		size := bounds.Size()
		center := bounds.Center()
		fmt.Printf("Center:    %s\n", formatVec(center))
		fmt.Printf("Size:      %s\n", formatVec(size))
	}

	colorTypes := make(map[string]int)
	short := 0
	for _, st := range set.Strokes {
		colorTypes[st.Color.Type]++
		if !st.Valid() {
			short++
		}
	}
	if len(colorTypes) > 0 {
		fmt.Println()
		fmt.Println("Colors:")
		types := make([]string, 0, len(colorTypes))
		for typ := range colorTypes {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			name := typ
			if name == "" {
				name = "(none)"
			}
			fmt.Printf("  %-10s %d\n", name, colorTypes[typ])
		}
	}
	if short > 0 {
		fmt.Printf("\n%d strokes have fewer than 2 points\n", short)
	}
	return nil
}

func cmdBake(args []string) error {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	translate := fs.String("t", "0,0,0", "Translation x,y,z")
	rotate := fs.String("r", "0,0,0", "Rotation x,y,z in degrees")
	scale := fs.String("s", "1,1,1", "Scale x,y,z")
	output := fs.String("o", "", "Output file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: qvpentool bake [-t x,y,z] [-r x,y,z] [-s x,y,z] <file.json>")
	}
	cfg, err := setup(flags)
	if err != nil {
		return err
	}

	var tr edit.Transform
	if tr.Translation, err = parseVec(*translate); err != nil {
		return fmt.Errorf("-t: %w", err)
	}
	if tr.Rotation, err = parseDegrees(*rotate); err != nil {
		return fmt.Errorf("-r: %w", err)
	}
	if tr.Scale, err = parseVec(*scale); err != nil {
		return fmt.Errorf("-s: %w", err)
	}

	s, err := openSession(cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	if err := s.SetTransform(tr); err != nil {
		return err
	}
	baked, err := s.Bake()
	if err != nil {
		return err
	}
	if !baked {
		fmt.Println("Nothing to bake")
		return nil
	}
	fmt.Println(s.Status())
	return writeResult(s, fs.Arg(0), *output)
}

func cmdTrim(args []string) error {
	fs := flag.NewFlagSet("trim", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	pos := fs.String("pos", "", "Box center x,y,z (default: drawing center)")
	rot := fs.String("rot", "0,0,0", "Box rotation x,y,z in degrees")
	size := fs.String("size", "", "Box size x,y,z (default: 80% of the drawing)")
	output := fs.String("o", "", "Output file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: qvpentool trim [-pos x,y,z] [-rot x,y,z] [-size x,y,z] <file.json>")
	}
	cfg, err := setup(flags)
	if err != nil {
		return err
	}

	s, err := openSession(cfg, fs.Arg(0))
	if err != nil {
		return err
	}

	box := s.DefaultTrimBox()
	if *pos != "" {
		if box.Position, err = parseVec(*pos); err != nil {
			return fmt.Errorf("-pos: %w", err)
		}
	}
	if box.Rotation, err = parseDegrees(*rot); err != nil {
		return fmt.Errorf("-rot: %w", err)
	}
	if *size != "" {
		if box.Scale, err = parseVec(*size); err != nil {
			return fmt.Errorf("-size: %w", err)
		}
	}

	stats, err := s.Trim(box)
	if err != nil {
		return err
	}
	fmt.Printf("Strokes: %d -> %d\n", stats.StrokesIn, stats.StrokesOut)
	fmt.Printf("Points:  %d -> %d\n", stats.PointsIn, stats.PointsOut)
	return writeResult(s, fs.Arg(0), *output)
}

func cmdNormalize(args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	output := fs.String("o", "", "Output file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: qvpentool normalize <file.json>")
	}
	cfg, err := setup(flags)
	if err != nil {
		return err
	}

	s, err := openSession(cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	offset, err := s.Normalize()
	if err != nil {
		return err
	}
	fmt.Printf("Offset: %s\n", formatVec(offset))
	return writeResult(s, fs.Arg(0), *output)
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: qvpentool validate <file.json>...")
	}
	if _, err := setup(flags); err != nil {
		return err
	}

	failed := 0
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err == nil {
			_, err = formats.ParseQvPen(data)
		}
		if err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Printf("ok   %s\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, fs.NArg())
	}
	return nil
}

// parseVec parses "x,y,z".
func parseVec(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = f
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// parseDegrees parses "x,y,z" in degrees and returns radians.
func parseDegrees(s string) (math.Vec3, error) {
	v, err := parseVec(s)
	if err != nil {
		return math.Vec3{}, err
	}
	return v.Scale(gomath.Pi / 180), nil
}

func formatVec(v math.Vec3) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
