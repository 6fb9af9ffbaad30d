package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"example.com/uf2forge/internal/common"
	"example.com/uf2forge/internal/manifest"
	"example.com/uf2forge/internal/report"
	"example.com/uf2forge/internal/rules"
	"example.com/uf2forge/internal/script"
	"example.com/uf2forge/internal/uf2"
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
	switch os.Args[1] {
	case "merge":
		mergeCmd(os.Args[2:])
	case "clear":
		clearCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "devices":
		devicesCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`uf2ctl %s (built %s) <command> [options]

Commands:
  merge     --script <file.py> --out <image.uf2> [--base <firmware.uf2>] [--device <name>] [--audit <audit.jsonl>]
  clear     --base <firmware.uf2> --out <image.uf2> [--device <name>] [--audit <audit.jsonl>]
  validate  --in <image.uf2> [--device <name>] [--rules <rulepack.json>] --out <diagnostics.ndjson> --acceptance <acceptance.json>
  inspect   --in <image.uf2> [--device <name>] [--script-out <file.py>]
  report    --in <image.uf2> [--device <name>] --out <flash_report.pdf>
  manifest  --inputs <comma-separated> --out <manifest.json> | --verify <manifest.json>
  devices
`, version, buildDate)
}

func mergeCmd(args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	scriptPath := fs.String("script", "", "script file to embed")
	basePath := fs.String("base", "", "base firmware .uf2 (optional)")
	out := fs.String("out", "", "output .uf2")
	device := fs.String("device", uf2.DefaultDevice, "device preset")
	auditPath := fs.String("audit", "", "audit log output (jsonl)")
	fs.Parse(args)

	if *scriptPath == "" || *out == "" {
		fmt.Println("required: --script and --out")
		os.Exit(1)
	}
	layout, err := uf2.LayoutFor(*device)
	if err != nil {
		fmt.Println("device:", err)
		os.Exit(1)
	}
	scriptBytes, err := os.ReadFile(*scriptPath)
	if err != nil {
		fmt.Println("read script:", err)
		os.Exit(1)
	}
	var baseBytes []byte
	if *basePath != "" {
		baseBytes, err = os.ReadFile(*basePath)
		if err != nil {
			fmt.Println("read base:", err)
			os.Exit(1)
		}
	}

	image, err := script.Embed(baseBytes, scriptBytes, layout)
	if err != nil {
		appendAudit(*auditPath, common.AuditEntry{
			Operation: "merge", Device: *device,
			InputSha: common.Sha256OfBytes(baseBytes), Error: err.Error(),
		})
		fmt.Println("merge:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, image, 0o644); err != nil {
		fmt.Println("write output:", err)
		os.Exit(1)
	}
	name := script.DeriveName(scriptBytes)
	appendAudit(*auditPath, common.AuditEntry{
		Operation: "merge", Device: *device,
		InputSha: common.Sha256OfBytes(baseBytes), OutputSha: common.Sha256OfBytes(image),
		ScriptName: name, ScriptLen: len(scriptBytes),
	})
	fmt.Printf("Merged %s (%s) into %s: %d blocks, %s\n",
		name, common.FormatBytes(int64(len(scriptBytes))), *out,
		len(image)/uf2.BlockSize, common.FormatBytes(int64(len(image))))
}

func clearCmd(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	basePath := fs.String("base", "", "base firmware .uf2")
	out := fs.String("out", "", "output .uf2")
	device := fs.String("device", uf2.DefaultDevice, "device preset")
	auditPath := fs.String("audit", "", "audit log output (jsonl)")
	fs.Parse(args)

	if *basePath == "" || *out == "" {
		fmt.Println("required: --base and --out")
		os.Exit(1)
	}
	layout, err := uf2.LayoutFor(*device)
	if err != nil {
		fmt.Println("device:", err)
		os.Exit(1)
	}
	baseBytes, err := os.ReadFile(*basePath)
	if err != nil {
		fmt.Println("read base:", err)
		os.Exit(1)
	}
	image, err := script.Clear(baseBytes, layout)
	if err != nil {
		appendAudit(*auditPath, common.AuditEntry{
			Operation: "clear", Device: *device,
			InputSha: common.Sha256OfBytes(baseBytes), Error: err.Error(),
		})
		fmt.Println("clear:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, image, 0o644); err != nil {
		fmt.Println("write output:", err)
		os.Exit(1)
	}
	appendAudit(*auditPath, common.AuditEntry{
		Operation: "clear", Device: *device,
		InputSha: common.Sha256OfBytes(baseBytes), OutputSha: common.Sha256OfBytes(image),
	})
	fmt.Printf("Cleared script region in %s: %d blocks\n", *out, len(image)/uf2.BlockSize)
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	in := fs.String("in", "", "input .uf2")
	device := fs.String("device", uf2.DefaultDevice, "device preset")
	rulesPath := fs.String("rules", "", "rulepack.json (defaults to built-in pack)")
	outDiag := fs.String("out", "diagnostics.ndjson", "diagnostics output")
	outAcc := fs.String("acceptance", "acceptance_report.json", "acceptance json")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	layout, err := uf2.LayoutFor(*device)
	if err != nil {
		fmt.Println("device:", err)
		os.Exit(1)
	}
	rp := rules.DefaultRulePack(*device)
	if *rulesPath != "" {
		rp, err = rules.LoadRulePack(*rulesPath)
		if err != nil {
			fmt.Println("load rulepack:", err)
			os.Exit(1)
		}
	}
	image, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read input:", err)
		os.Exit(1)
	}

	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	diags, err := engine.Eval(&rules.Context{InputFile: *in, Image: image, Layout: layout})
	if err != nil {
		fmt.Println("eval:", err)
		os.Exit(1)
	}
	if err := engine.WriteDiagnosticsNDJSON(*outDiag); err != nil {
		fmt.Println("write diags:", err)
		os.Exit(1)
	}
	rep := engine.MakeAcceptance()
	if err := report.SaveAcceptanceJSON(rep, *outAcc); err != nil {
		fmt.Println("write report:", err)
		os.Exit(1)
	}
	fmt.Printf("PASS=%v, errors=%d, warnings=%d, diagnostics=%d\n",
		rep.Summary.Pass, rep.Summary.Errors, rep.Summary.Warnings, len(diags))
	if !rep.Summary.Pass {
		os.Exit(1)
	}
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "input .uf2")
	device := fs.String("device", uf2.DefaultDevice, "device preset")
	scriptOut := fs.String("script-out", "", "write the embedded script to this file")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	layout, err := uf2.LayoutFor(*device)
	if err != nil {
		fmt.Println("device:", err)
		os.Exit(1)
	}
	image, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read input:", err)
		os.Exit(1)
	}
	info, err := script.Extract(image, layout)
	if err != nil {
		fmt.Println("inspect:", err)
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "device\t%s\n", *device)
	fmt.Fprintf(w, "name\t%s\n", info.Name)
	fmt.Fprintf(w, "present\t%v\n", info.Present)
	fmt.Fprintf(w, "cleared\t%v\n", info.Cleared)
	fmt.Fprintf(w, "script\t%s\n", common.FormatBytes(int64(len(info.Script))))
	w.Flush()
	if *scriptOut != "" {
		if err := os.WriteFile(*scriptOut, info.Script, 0o644); err != nil {
			fmt.Println("write script:", err)
			os.Exit(1)
		}
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input .uf2")
	device := fs.String("device", uf2.DefaultDevice, "device preset")
	out := fs.String("out", "flash_report.pdf", "report output (pdf)")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	layout, err := uf2.LayoutFor(*device)
	if err != nil {
		fmt.Println("device:", err)
		os.Exit(1)
	}
	image, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read input:", err)
		os.Exit(1)
	}

	engine := rules.NewEngine(rules.DefaultRulePack(*device))
	engine.RegisterBuiltins()
	if _, err := engine.Eval(&rules.Context{InputFile: *in, Image: image, Layout: layout}); err != nil {
		fmt.Println("eval:", err)
		os.Exit(1)
	}
	rep := engine.MakeAcceptance()

	info := report.BuildInfo{
		Device:     *device,
		OutputPath: *in,
		OutputSha:  common.Sha256OfBytes(image),
		OutputSize: int64(len(image)),
		Blocks:     len(image) / uf2.BlockSize,
	}
	if extracted, err := script.Extract(image, layout); err == nil {
		info.ScriptName = extracted.Name
		info.ScriptLen = len(extracted.Script)
	}
	if err := report.SaveFlashReportPDF(info, rep, *out); err != nil {
		fmt.Println("write report:", err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s (pass=%v)\n", *out, rep.Summary.Pass)
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated input files")
	out := fs.String("out", "manifest.json", "manifest output")
	verify := fs.String("verify", "", "verify an existing manifest instead of building one")
	fs.Parse(args)

	if *verify != "" {
		m, err := manifest.Load(*verify)
		if err != nil {
			fmt.Println("load manifest:", err)
			os.Exit(1)
		}
		stale, err := manifest.Verify(m)
		if err != nil {
			fmt.Println("verify manifest:", err)
			os.Exit(1)
		}
		if len(stale) > 0 {
			fmt.Println("STALE:", strings.Join(stale, ", "))
			os.Exit(1)
		}
		fmt.Printf("Manifest OK: %d items\n", len(m.Items))
		return
	}

	if *inputs == "" {
		fmt.Println("required: --inputs or --verify")
		os.Exit(1)
	}
	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
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
	fmt.Printf("Manifest written to %s: %d items\n", *out, len(m.Items))
}

func devicesCmd(args []string) {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	fs.Parse(args)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tFLASH\tREGION\tBLOCKS\tFAMILY")
	for _, name := range uf2.Devices() {
		l, err := uf2.LayoutFor(name)
		if err != nil {
			continue
		}
		marker := ""
		if name == uf2.DefaultDevice {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%s\t0x%08X-0x%08X\t%d\t0x%08X\n",
			name, marker,
			common.FormatBytes(int64(l.FlashSize)),
			l.RegionStart(), l.RegionEnd(), l.RegionBlocks(), l.FamilyID)
	}
	w.Flush()
}

func appendAudit(path string, entry common.AuditEntry) {
	if path == "" {
		return
	}
	if err := common.NewAuditLog(path).Append(entry); err != nil {
		fmt.Fprintf(os.Stderr, "audit append: %v\n", err)
	}
}
