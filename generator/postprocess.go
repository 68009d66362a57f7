package generator

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// genericFallbackKey is the single-reply key some models emit instead of per-variant keys.
const genericFallbackKey = "spur"

// Parsed is the fully keyed variant map recovered from one model response.
type Parsed struct {
	Texts map[string]string
	// OK is false when the response held no JSON object; Texts is then all empty.
	OK bool
}

// ParseOutput 解析模型输出：去掉 markdown 代码块、解析 JSON，并为缺失的变体补齐。
// Every id in known is present in the result. A missing variant takes the
// fallback variant's value, else the generic "spur" value, else "".
func ParseOutput(raw string, known []string, fallback string) Parsed {
	texts := make(map[string]string, len(known))
	for _, k := range known {
		texts[k] = ""
	}

	obj, ok := parseObject(raw)
	if !ok {
		return Parsed{Texts: texts}
	}

	values := make(map[string]string)
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			values[key.String()] = value.String()
		}
		return true
	})

	backfill := ""
	if v, ok := values[fallback]; ok {
		backfill = v
	} else if v, ok := values[genericFallbackKey]; ok {
		backfill = v
	}
	for _, k := range known {
		if v, ok := values[k]; ok {
			texts[k] = v
		} else {
			texts[k] = backfill
		}
	}
	return Parsed{Texts: texts, OK: true}
}

func parseObject(raw string) (gjson.Result, bool) {
	body := extractJSON(raw)
	if body == "" || !gjson.Valid(body) {
		return gjson.Result{}, false
	}
	obj := gjson.Parse(body)
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	return obj, true
}

// hasJSONObject reports whether raw carries a parseable JSON object, fenced or bare.
func hasJSONObject(raw string) bool {
	_, ok := parseObject(raw)
	return ok
}

// extractJSON returns the body of the first fenced code block in raw,
// or raw itself (trimmed) when there is none.
func extractJSON(raw string) string {
	src := []byte(strings.TrimSpace(raw))
	if len(src) == 0 {
		return ""
	}
	if !bytes.Contains(src, []byte("```")) && !bytes.Contains(src, []byte("~~~")) {
		return string(src)
	}

	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	var body bytes.Buffer
	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := fb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(src))
		}
		found = true
		return ast.WalkStop, nil
	})
	if !found {
		return string(src)
	}
	return strings.TrimSpace(body.String())
}
