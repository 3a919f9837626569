package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"example.com/ccsdsgate/internal/anomaly"
	"example.com/ccsdsgate/internal/ccsds"
	"example.com/ccsdsgate/internal/common"
	"example.com/ccsdsgate/internal/manifest"
	"example.com/ccsdsgate/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "depacketize":
		depacketizeCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`ccsdsctl %s (built %s) <command> [options]

Commands:
  depacketize  --in <stream.bin> --out-dir <dir> [--config <cfg.yaml>] [--report <report.json>] [--pdf <report.pdf>] [--strict-crc] [--metrics] [--progress]
  report       --in <report.json> --pdf <report.pdf>
  manifest     --inputs <comma-separated> --out <manifest.json>
`, version, buildDate)
}

type decoderConfig struct {
	GapThreshold    uint16 `yaml:"gapThreshold"`
	PayloadSizeHint int    `yaml:"payloadSizeHint"`
	MaxFrameBytes   int    `yaml:"maxFrameBytes"`
	StrictCrc       bool   `yaml:"strictCrc"`
	InitialPsc      int    `yaml:"initialPsc"`
}

type logConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type config struct {
	Decoder decoderConfig `yaml:"decoder"`
	Logs    logConfig     `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupLogging(lc logConfig) {
	if lc.Path == "" {
		return
	}
	if lc.MaxSizeMB <= 0 {
		lc.MaxSizeMB = 50
	}
	common.SetLogOutput(&lumberjack.Logger{
		Filename:   lc.Path,
		MaxSize:    lc.MaxSizeMB,
		MaxAge:     lc.MaxAgeDays,
		MaxBackups: lc.MaxBackups,
		Compress:   lc.Compress,
	})
}

func depacketizeCmd(args []string) {
	fs := flag.NewFlagSet("depacketize", flag.ExitOnError)
	in := fs.String("in", "", "input CCSDS stream file")
	outDir := fs.String("out-dir", ".", "directory for reconstructed frame files")
	cfgPath := fs.String("config", "", "YAML config file")
	reportPath := fs.String("report", "", "report JSON output (default <out-dir>/depacketize_report.json)")
	pdfPath := fs.String("pdf", "", "optional PDF rendering of the report")
	logPath := fs.String("log", "", "log file (rotated); overrides config")
	strictCrc := fs.Bool("strict-crc", false, "zero-fill payloads that fail the CRC check")
	gapThreshold := fs.Uint("gap-threshold", 0, "max counter gap treated as fillable (0 = config/default)")
	payloadHint := fs.Int("payload-hint", 0, "fill block size for missing packets (0 = config/default)")
	initialPsc := fs.Int("initial-psc", 0, "expected counter of a channel's first packet (0 = adopt first seen)")
	metricsFlag := fs.Bool("metrics", false, "print throughput metrics")
	progressFlag := fs.Bool("progress", false, "display progress updates")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	var fileCfg config
	if *cfgPath != "" {
		var err error
		fileCfg, err = loadConfig(*cfgPath)
		if err != nil {
			fmt.Println("load config:", err)
			os.Exit(1)
		}
	}
	if *logPath != "" {
		fileCfg.Logs.Path = *logPath
	}
	setupLogging(fileCfg.Logs)

	cfg := ccsds.Config{
		GapThreshold:    fileCfg.Decoder.GapThreshold,
		PayloadSizeHint: fileCfg.Decoder.PayloadSizeHint,
		MaxFrameBytes:   fileCfg.Decoder.MaxFrameBytes,
		StrictCrc:       fileCfg.Decoder.StrictCrc || *strictCrc,
		InitialPSC:      fileCfg.Decoder.InitialPsc,
	}
	if *gapThreshold > 0 {
		cfg.GapThreshold = uint16(*gapThreshold)
	}
	if *payloadHint > 0 {
		cfg.PayloadSizeHint = *payloadHint
	}
	if *initialPsc > 0 {
		cfg.InitialPSC = *initialPsc
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Println("create out dir:", err)
		os.Exit(1)
	}
	if *reportPath == "" {
		*reportPath = filepath.Join(*outDir, "depacketize_report.json")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read input:", err)
		os.Exit(1)
	}

	var metrics *common.Metrics
	var stopProgress func()
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
		metrics.Start()
		if *progressFlag {
			stopProgress = common.StartProgressPrinter(os.Stderr, metrics, time.Second)
		}
	}

	common.Logf("processing stream %s (%d bytes)", *in, len(data))
	frames, rep, procErr := ccsds.ProcessStreamInto(data, cfg, anomaly.NewReporter(), metrics)
	if metrics != nil {
		metrics.Stop()
	}
	if stopProgress != nil {
		stopProgress()
	}

	outputs, err := writeFrames(frames, *outDir)
	if err != nil {
		fmt.Println("write frames:", err)
		os.Exit(1)
	}
	if err := report.SaveReportJSON(rep, *reportPath); err != nil {
		fmt.Println("write report:", err)
		os.Exit(1)
	}
	outputs = append(outputs, *reportPath)
	if *pdfPath != "" {
		if err := report.SaveReportPDF(rep, *pdfPath); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(1)
		}
		outputs = append(outputs, *pdfPath)
	}

	m, err := manifest.Build(outputs)
	if err != nil {
		fmt.Println("build manifest:", err)
		os.Exit(1)
	}
	if err := manifest.Save(m, filepath.Join(*outDir, "manifest.json")); err != nil {
		fmt.Println("write manifest:", err)
		os.Exit(1)
	}

	if metrics != nil && *metricsFlag {
		s := metrics.Snapshot()
		fmt.Printf("Processed %d packets (%s) in %s, %d gaps, %d frames\n",
			s.Packets, common.FormatBytes(s.Bytes), s.Duration.Round(time.Millisecond), s.Gaps, s.Frames)
	}
	fmt.Printf("Frames: %d  Anomalies: %d  Report: %s\n", rep.Summary.Frames, rep.Summary.Anomalies, *reportPath)

	if procErr != nil {
		if errors.Is(procErr, ccsds.ErrMalformedHeader) || errors.Is(procErr, ccsds.ErrEmptyStream) {
			fmt.Fprintf(os.Stderr, "processing aborted: %v (partial output written)\n", procErr)
		} else {
			fmt.Fprintf(os.Stderr, "processing failed: %v\n", procErr)
		}
		os.Exit(1)
	}
}

func writeFrames(frames []ccsds.Frame, outDir string) ([]string, error) {
	paths := make([]string, 0, len(frames))
	for _, f := range frames {
		name := fmt.Sprintf("ch%04d_%06d_%s.frame", f.APID, f.Index, strings.ReplaceAll(f.Status.String(), "+", "-"))
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, f.Buffer, 0644); err != nil {
			return paths, err
		}
		common.Logf("wrote frame %s (%d bytes, status %s)", path, len(f.Buffer), f.Status)
		paths = append(paths, path)
	}
	return paths, nil
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "report JSON file")
	pdfPath := fs.String("pdf", "", "PDF output path")
	fs.Parse(args)

	if *in == "" || *pdfPath == "" {
		fmt.Println("required: --in and --pdf")
		os.Exit(1)
	}
	rep, err := report.LoadReportJSON(*in)
	if err != nil {
		fmt.Println("load report:", err)
		os.Exit(1)
	}
	if err := report.SaveReportPDF(rep, *pdfPath); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *pdfPath)
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated artifact paths")
	out := fs.String("out", "manifest.json", "manifest output path")
	fs.Parse(args)

	if *inputs == "" {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}
	paths := strings.Split(*inputs, ",")
	for i := range paths {
		paths[i] = strings.TrimSpace(paths[i])
	}
	m, err := manifest.Build(paths)
	if err != nil {
		fmt.Println("build manifest:", err)
		os.Exit(1)
	}
	if err := manifest.Save(m, *out); err != nil {
		fmt.Println("write manifest:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d items)\n", *out, len(m.Items))
}
