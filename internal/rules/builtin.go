package rules

import (
	"fmt"
	"time"

	"example.com/uf2forge/internal/script"
	"example.com/uf2forge/internal/uf2"
)

// RegisterBuiltins installs every builtin check function.
func (e *Engine) RegisterBuiltins() {
	e.Register("checkStructure", checkStructure)
	e.Register("checkBlockNumbering", checkBlockNumbering)
	e.Register("checkDuplicateAddress", checkDuplicateAddress)
	e.Register("checkRegionCoverage", checkRegionCoverage)
	e.Register("checkRegionFamily", checkRegionFamily)
	e.Register("checkStatusWord", checkStatusWord)
	e.Register("checkAddressBounds", checkAddressBounds)
}

// DefaultRulePack returns the builtin rule set bound to a device preset.
func DefaultRulePack(device string) RulePack {
	return RulePack{
		RulePackId: "uf2forge-builtin",
		Version:    "1",
		Device:     device,
		Rules: []Rule{
			{RuleId: "UF2-001", Name: "container structure", Severity: ERROR, CheckFunc: "checkStructure"},
			{RuleId: "UF2-002", Name: "block numbering", Severity: ERROR, CheckFunc: "checkBlockNumbering"},
			{RuleId: "UF2-003", Name: "address uniqueness", Severity: ERROR, CheckFunc: "checkDuplicateAddress"},
			{RuleId: "UF2-004", Name: "region coverage", Severity: ERROR, CheckFunc: "checkRegionCoverage"},
			{RuleId: "UF2-005", Name: "region family tagging", Severity: ERROR, CheckFunc: "checkRegionFamily"},
			{RuleId: "UF2-006", Name: "script status word", Severity: WARN, CheckFunc: "checkStatusWord"},
			{RuleId: "UF2-007", Name: "flash address bounds", Severity: WARN, CheckFunc: "checkAddressBounds"},
		},
	}
}

func newDiag(ctx *Context, rule Rule, msg string) Diagnostic {
	return Diagnostic{
		Ts:       time.Now(),
		File:     ctx.InputFile,
		RuleId:   rule.RuleId,
		Severity: rule.Severity,
		Message:  msg,
		Refs:     rule.Refs,
	}
}

func checkStructure(ctx *Context, rule Rule) []Diagnostic {
	if ctx.ParseErr != nil {
		return []Diagnostic{newDiag(ctx, rule, ctx.ParseErr.Error())}
	}
	if ctx.Container == nil || ctx.Container.Len() == 0 {
		return []Diagnostic{newDiag(ctx, rule, "container holds no blocks")}
	}
	return nil
}

func checkBlockNumbering(ctx *Context, rule Rule) []Diagnostic {
	if ctx.Container == nil {
		return nil
	}
	var diags []Diagnostic
	total := uint32(ctx.Container.Len())
	for i, b := range ctx.Container.Blocks {
		if b.BlockNo != uint32(i) {
			d := newDiag(ctx, rule, fmt.Sprintf("block %d carries index %d", i, b.BlockNo))
			d.BlockIndex = i
			d.Offset = fmt.Sprintf("0x%X", i*uf2.BlockSize)
			diags = append(diags, d)
		}
		if b.NumBlocks != total {
			d := newDiag(ctx, rule, fmt.Sprintf("block %d declares total %d, container has %d", i, b.NumBlocks, total))
			d.BlockIndex = i
			d.Offset = fmt.Sprintf("0x%X", i*uf2.BlockSize)
			diags = append(diags, d)
		}
	}
	return diags
}

func checkDuplicateAddress(ctx *Context, rule Rule) []Diagnostic {
	if ctx.Container == nil {
		return nil
	}
	var diags []Diagnostic
	seen := make(map[uint32]int, ctx.Container.Len())
	for i, b := range ctx.Container.Blocks {
		if prev, dup := seen[b.TargetAddr]; dup {
			d := newDiag(ctx, rule, fmt.Sprintf("address 0x%08X targeted by blocks %d and %d", b.TargetAddr, prev, i))
			d.BlockIndex = i
			diags = append(diags, d)
			continue
		}
		seen[b.TargetAddr] = i
	}
	return diags
}

func checkRegionCoverage(ctx *Context, rule Rule) []Diagnostic {
	if ctx.Container == nil {
		return nil
	}
	l := ctx.Layout
	var region []uf2.Block
	for _, b := range ctx.Container.Blocks {
		if l.InRegion(b.TargetAddr) {
			region = append(region, b)
		}
	}
	if len(region) == 0 {
		// A base image without a script region is legitimate input;
		// coverage only applies once region blocks exist.
		return nil
	}
	var diags []Diagnostic
	if len(region) != l.RegionBlocks() {
		diags = append(diags, newDiag(ctx, rule,
			fmt.Sprintf("reserved region holds %d blocks, want %d", len(region), l.RegionBlocks())))
		return diags
	}
	for i, b := range region {
		want := l.RegionStart() + uint32(i)*l.BlockPayload
		if b.TargetAddr != want {
			diags = append(diags, newDiag(ctx, rule,
				fmt.Sprintf("region block %d targets 0x%08X, want 0x%08X", i, b.TargetAddr, want)))
		}
	}
	return diags
}

func checkRegionFamily(ctx *Context, rule Rule) []Diagnostic {
	if ctx.Container == nil {
		return nil
	}
	l := ctx.Layout
	var diags []Diagnostic
	for i, b := range ctx.Container.Blocks {
		if !l.InRegion(b.TargetAddr) {
			continue
		}
		if !b.HasFamilyID() {
			d := newDiag(ctx, rule, fmt.Sprintf("region block at 0x%08X has no family flag", b.TargetAddr))
			d.BlockIndex = i
			diags = append(diags, d)
			continue
		}
		if b.FamilyID != l.FamilyID {
			d := newDiag(ctx, rule,
				fmt.Sprintf("region block at 0x%08X carries family 0x%08X, want 0x%08X", b.TargetAddr, b.FamilyID, l.FamilyID))
			d.BlockIndex = i
			diags = append(diags, d)
		}
	}
	return diags
}

func checkStatusWord(ctx *Context, rule Rule) []Diagnostic {
	if ctx.Container == nil {
		return nil
	}
	hasRegion := false
	for _, b := range ctx.Container.Blocks {
		if ctx.Layout.InRegion(b.TargetAddr) {
			hasRegion = true
			break
		}
	}
	if !hasRegion {
		return nil
	}
	var diags []Diagnostic
	info, err := script.Extract(ctx.Image, ctx.Layout)
	if err != nil {
		diags = append(diags, newDiag(ctx, rule,
			fmt.Sprintf("unrecognized presence magic 0x%X in status word", info.Magic)))
		return diags
	}
	if info.Present && len(info.Script) == 0 {
		diags = append(diags, newDiag(ctx, rule, "status word marks a script present but its length is zero"))
	}
	return diags
}

func checkAddressBounds(ctx *Context, rule Rule) []Diagnostic {
	if ctx.Container == nil {
		return nil
	}
	l := ctx.Layout
	flashEnd := l.BaseAddr + l.FlashSize
	var diags []Diagnostic
	for i, b := range ctx.Container.Blocks {
		if b.Flags&uf2.FlagNotMainFlash != 0 {
			continue
		}
		if b.TargetAddr < l.BaseAddr || b.TargetAddr+b.PayloadSize > flashEnd {
			d := newDiag(ctx, rule,
				fmt.Sprintf("block %d writes outside flash (0x%08X..0x%08X)", i, b.TargetAddr, b.TargetAddr+b.PayloadSize-1))
			d.BlockIndex = i
			diags = append(diags, d)
		}
	}
	return diags
}
