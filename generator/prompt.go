package generator

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// BuildPrompt 生成 spur 提示词。
// requested must be non-empty and every id must exist in table; the output is
// deterministic for identical inputs.
func BuildPrompt(requested []string, table VariantTable, contextBlock string) (string, error) {
	if len(requested) == 0 {
		return "", errors.Wrap(ErrInvalidVariantSet, "no variants requested")
	}
	descs := make([]string, 0, len(requested))
	for _, id := range requested {
		d, ok := table.Lookup(id)
		if !ok {
			return "", errors.Wrapf(ErrInvalidVariantSet, "unknown variant %q", id)
		}
		descs = append(descs, d)
	}

	var sb strings.Builder
	sb.WriteString("### Instructions\n")
	sb.WriteString(fmt.Sprintf("Write reply suggestions (spurs) for Party A to send to Party B based on the context below. "+
		"Write exactly one spur for each of the following %d tones:\n\n", len(requested)))
	for i, d := range descs {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, d))
	}
	sb.WriteString("\n")
	sb.WriteString("Do not repeat the original messages. Each spur must feel distinct in tone and wording, ")
	sb.WriteString("reflect the context, and sound as if Party A wrote it given what is known about Party B.\n\n")
	sb.WriteString("Respond with strict JSON only, no commentary and no markdown, using exactly these keys:\n")
	sb.WriteString(jsonSchema(requested))
	sb.WriteString("\n\n### Context\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n")
	return sb.String(), nil
}

func jsonSchema(ids []string) string {
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("  %q: \"...\"", id))
	}
	return "{\n" + strings.Join(lines, ",\n") + "\n}"
}
