package fonts

import (
	"fmt"

	"github.com/go-text/typesetting/font/opentype/tables"
)

// addGSUBClosure extends keep with every glyph a GSUB lookup can produce
// from glyphs already in keep: single, multiple, alternate and ligature
// outputs, including lookups reached through contextual rules.
func addGSUBClosure(gsub []byte, keep glyphSet) error {
	layout, _, err := tables.ParseLayout(gsub)
	if err != nil {
		return fmt.Errorf("parse GSUB layout: %w", err)
	}

	lookups := make([][]tables.GSUBLookup, len(layout.LookupList.Lookups))
	for i, lookup := range layout.LookupList.Lookups {
		subtables, err := lookup.AsGSUBLookups()
		if err != nil {
			continue
		}
		lookups[i] = subtables
	}

	c := &gsubClosure{lookups: lookups, keep: keep}
	for changed := true; changed; {
		changed = false
		snapshot := keep.glyphIDs()
		c.visiting = make(map[int]bool)
		for idx := range lookups {
			if c.applyLookup(idx, snapshot) {
				changed = true
			}
		}
	}
	return nil
}

type gsubClosure struct {
	lookups  [][]tables.GSUBLookup
	keep     glyphSet
	visiting map[int]bool
}

func (c *gsubClosure) applyLookup(idx int, glyphs []uint16) bool {
	if idx < 0 || idx >= len(c.lookups) || c.visiting[idx] || len(c.lookups[idx]) == 0 {
		return false
	}
	c.visiting[idx] = true
	defer func() { c.visiting[idx] = false }()

	changed := false
	for _, subtable := range c.lookups[idx] {
		if c.applySubtable(subtable, glyphs) {
			changed = true
		}
	}
	return changed
}

func (c *gsubClosure) applySubtable(subtable tables.GSUBLookup, glyphs []uint16) bool {
	if ext, ok := subtable.(tables.ExtensionSubs); ok {
		inner := unwrapExtension(tables.Extension(ext))
		if inner == nil {
			return false
		}
		return c.applySubtable(inner, glyphs)
	}

	changed := false
	cov := subtable.Cov()
	if cov == nil {
		return false
	}

	for _, gid := range glyphs {
		idx, ok := cov.Index(tables.GlyphID(gid))
		if !ok {
			continue
		}

		switch t := subtable.(type) {
		case tables.SingleSubs:
			switch d := t.Data.(type) {
			case tables.SingleSubstData1:
				// delta arithmetic is modulo 65536
				changed = c.keep.add(int(uint16(int(gid)+int(d.DeltaGlyphID)))) || changed
			case tables.SingleSubstData2:
				if idx < len(d.SubstituteGlyphIDs) {
					changed = c.keep.add(int(d.SubstituteGlyphIDs[idx])) || changed
				}
			}

		case tables.MultipleSubs:
			if idx < len(t.Sequences) {
				for _, out := range t.Sequences[idx].SubstituteGlyphIDs {
					changed = c.keep.add(int(out)) || changed
				}
			}

		case tables.AlternateSubs:
			if idx < len(t.AlternateSets) {
				for _, out := range t.AlternateSets[idx].AlternateGlyphIDs {
					changed = c.keep.add(int(out)) || changed
				}
			}

		case tables.LigatureSubs:
			if idx < len(t.LigatureSets) {
				for _, lig := range t.LigatureSets[idx].Ligatures {
					complete := true
					for _, comp := range lig.ComponentGlyphIDs {
						if !c.keep[int(comp)] {
							complete = false
							break
						}
					}
					if complete {
						changed = c.keep.add(int(lig.LigatureGlyph)) || changed
					}
				}
			}

		case tables.ContextualSubs:
			if c.applyContextual(t.Data, idx, glyphs) {
				changed = true
			}

		case tables.ChainedContextualSubs:
			if c.applyChainedContextual(t.Data, idx, glyphs) {
				changed = true
			}

		case tables.ReverseChainSingleSubs:
			if idx < len(t.SubstituteGlyphIDs) {
				changed = c.keep.add(int(t.SubstituteGlyphIDs[idx])) || changed
			}
		}
	}
	return changed
}

func unwrapExtension(ext tables.Extension) tables.GSUBLookup {
	if int(ext.ExtensionOffset) >= len(ext.RawData) {
		return nil
	}
	data := ext.RawData[ext.ExtensionOffset:]
	var (
		inner tables.GSUBLookup
		err   error
	)
	switch ext.ExtensionLookupType {
	case 1:
		var s tables.SingleSubs
		s, _, err = tables.ParseSingleSubs(data)
		inner = s
	case 2:
		var s tables.MultipleSubs
		s, _, err = tables.ParseMultipleSubs(data)
		inner = s
	case 3:
		var s tables.AlternateSubs
		s, _, err = tables.ParseAlternateSubs(data)
		inner = s
	case 4:
		var s tables.LigatureSubs
		s, _, err = tables.ParseLigatureSubs(data)
		inner = s
	default:
		// Contextual (5, 6) and reverse chaining (8) extensions are not followed.
		return nil
	}
	if err != nil {
		return nil
	}
	return inner
}

func (c *gsubClosure) applyContextual(data tables.ContextualSubsITF, coverageIndex int, glyphs []uint16) bool {
	switch t := data.(type) {
	case tables.ContextualSubs1:
		fmt1 := tables.SequenceContextFormat1(t)
		if coverageIndex >= 0 && coverageIndex < len(fmt1.SeqRuleSet) {
			return c.applyRuleSet(fmt1.SeqRuleSet[coverageIndex], glyphs)
		}
	case tables.ContextualSubs2:
		fmt2 := tables.SequenceContextFormat2(t)
		changed := false
		for _, set := range fmt2.ClassSeqRuleSet {
			if c.applyRuleSet(set, glyphs) {
				changed = true
			}
		}
		return changed
	case tables.ContextualSubs3:
		fmt3 := tables.SequenceContextFormat3(t)
		return c.applyRecords(fmt3.SeqLookupRecords, glyphs)
	}
	return false
}

func (c *gsubClosure) applyChainedContextual(data tables.ChainedContextualSubsITF, coverageIndex int, glyphs []uint16) bool {
	switch t := data.(type) {
	case tables.ChainedContextualSubs1:
		fmt1 := tables.ChainedSequenceContextFormat1(t)
		if coverageIndex >= 0 && coverageIndex < len(fmt1.ChainedSeqRuleSet) {
			return c.applyChainedRuleSet(fmt1.ChainedSeqRuleSet[coverageIndex], glyphs)
		}
	case tables.ChainedContextualSubs2:
		fmt2 := tables.ChainedSequenceContextFormat2(t)
		changed := false
		for _, set := range fmt2.ChainedClassSeqRuleSet {
			if c.applyChainedRuleSet(set, glyphs) {
				changed = true
			}
		}
		return changed
	case tables.ChainedContextualSubs3:
		fmt3 := tables.ChainedSequenceContextFormat3(t)
		return c.applyRecords(fmt3.SeqLookupRecords, glyphs)
	}
	return false
}

func (c *gsubClosure) applyRuleSet(set tables.SequenceRuleSet, glyphs []uint16) bool {
	changed := false
	for _, rule := range set.SeqRule {
		if c.applyRecords(rule.SeqLookupRecords, glyphs) {
			changed = true
		}
	}
	return changed
}

func (c *gsubClosure) applyChainedRuleSet(set tables.ChainedSequenceRuleSet, glyphs []uint16) bool {
	changed := false
	for _, rule := range set.ChainedSeqRules {
		if c.applyRecords(rule.SeqLookupRecords, glyphs) {
			changed = true
		}
	}
	return changed
}

func (c *gsubClosure) applyRecords(records []tables.SequenceLookupRecord, glyphs []uint16) bool {
	changed := false
	for _, record := range records {
		if c.applyLookup(int(record.LookupListIndex), glyphs) {
			changed = true
		}
	}
	return changed
}
