package finality

import (
	"fmt"
	"strconv"

	"github.com/cbroglie/mustache"

	"github.com/blockdeep/exbrid/chain"
)

const DefaultRemarkTemplate = "ETH finalized block: number={{number}}, hash={{hash}}"

type RemarkFormatter struct {
	template *mustache.Template
}

func NewRemarkFormatter(template string) (*RemarkFormatter, error) {
	tmpl, err := mustache.ParseString(template)
	if err != nil {
		return nil, fmt.Errorf("parse remark template: %w", err)
	}
	return &RemarkFormatter{template: tmpl}, nil
}

// Format renders the remark payload for record as raw bytes.
func (f *RemarkFormatter) Format(record chain.BlockRecord) ([]byte, error) {
	text, err := f.template.Render(map[string]string{
		"number": strconv.FormatUint(record.Number, 10),
		"hash":   record.Hash.Hex(),
	})
	if err != nil {
		return nil, fmt.Errorf("render remark: %w", err)
	}
	return []byte(text), nil
}
