package markup

import "sort"

// spanNode is one tagged span in the arena built by ResolveNested. Parent
// and children are arena indices, not pointers, and all offsets refer to
// the original text so no splice invalidates them.
type spanNode struct {
	label        string
	start        int // offset of the opening tag
	end          int // offset just past the closing tag, -1 while open
	contentStart int
	contentEnd   int
	parent       int
	children     []int
}

type tagEvent struct {
	opening bool
	label   string
	start   int
	end     int
}

// ResolveNested flattens nested geographic tags so only outermost spans
// remain tagged. Each root span that contains further tags is rewritten as
// a single tag around its content with all inner markup stripped to plain
// text. Spans whose closing tag never appears are left untouched. The
// function is idempotent: a second run finds no nested spans.
func ResolveNested(text string) string {
	roots, arena := buildSpanTree(text)
	if len(roots) == 0 {
		return text
	}

	// Rewrite from the last root backward so earlier offsets stay valid.
	result := text
	for i := len(roots) - 1; i >= 0; i-- {
		node := arena[roots[i]]
		if node.end < 0 || len(node.children) == 0 {
			continue
		}
		inner := StripTags(text[node.contentStart:node.contentEnd])
		result = result[:node.start] + Tag(node.label, inner) + result[node.end:]
	}
	return result
}

// buildSpanTree tokenizes the text's geographic tags in one pass and links
// spans into a tree via a stack. A closing tag pops the nearest open span
// with the same label together with everything stacked above it, which
// also settles partially overlapping spans: the abandoned inner spans stay
// open and are skipped during rewriting.
func buildSpanTree(text string) ([]int, []spanNode) {
	var events []tagEvent
	for _, m := range openingTagRe.FindAllStringSubmatchIndex(text, -1) {
		if label := text[m[2]:m[3]]; IsGeoLabel(label) {
			events = append(events, tagEvent{opening: true, label: label, start: m[0], end: m[1]})
		}
	}
	for _, m := range closingTagRe.FindAllStringSubmatchIndex(text, -1) {
		if label := text[m[2]:m[3]]; IsGeoLabel(label) {
			events = append(events, tagEvent{label: label, start: m[0], end: m[1]})
		}
	}
	if len(events) == 0 {
		return nil, nil
	}
	sort.Slice(events, func(i, j int) bool { return events[i].start < events[j].start })

	var (
		arena []spanNode
		roots []int
		stack []int
	)
	for _, ev := range events {
		if ev.opening {
			idx := len(arena)
			arena = append(arena, spanNode{
				label:        ev.label,
				start:        ev.start,
				end:          -1,
				contentStart: ev.end,
				contentEnd:   -1,
				parent:       -1,
			})
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				arena[idx].parent = top
				arena[top].children = append(arena[top].children, idx)
			} else {
				roots = append(roots, idx)
			}
			stack = append(stack, idx)
			continue
		}
		for i := len(stack) - 1; i >= 0; i-- {
			idx := stack[i]
			if arena[idx].label == ev.label {
				arena[idx].end = ev.end
				arena[idx].contentEnd = ev.start
				stack = stack[:i]
				break
			}
		}
	}
	return roots, arena
}
