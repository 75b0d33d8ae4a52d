package diff

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/ppiankov/clausewatch/internal/model"
)

// AlignSequences aligns two sequences of opaque tokens (for example clause
// hashes) and returns the opcodes with index ranges only. Equal tokens match
// by exact string equality.
func AlignSequences(a, b []string) []model.Op {
	if len(a) == 0 && len(b) == 0 {
		return []model.Op{}
	}

	matcher := difflib.NewMatcherWithJunk(a, b, false, nil)
	codes := matcher.GetOpCodes()

	ops := make([]model.Op, 0, len(codes))
	for _, oc := range codes {
		ops = append(ops, model.Op{
			Tag:      tagName(oc.Tag),
			OldStart: oc.I1,
			OldEnd:   oc.I2,
			NewStart: oc.J1,
			NewEnd:   oc.J2,
		})
	}
	return ops
}

func tagName(tag byte) model.OpTag {
	switch tag {
	case 'i':
		return model.OpInsert
	case 'd':
		return model.OpDelete
	case 'r':
		return model.OpReplace
	default:
		return model.OpEqual
	}
}
