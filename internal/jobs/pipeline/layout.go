package pipeline

import (
	"fmt"
	"strings"

	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// Layout selects the writer/editor/reviewer stage set of a content run.
type Layout string

const (
	LayoutArticle   Layout = "article"
	LayoutTutorial  Layout = "tutorial"
	LayoutInterview Layout = "interview"
	LayoutChangelog Layout = "changelog"
)

// Layouts lists every supported layout.
var Layouts = []Layout{LayoutArticle, LayoutTutorial, LayoutInterview, LayoutChangelog}

// Variant names the three layout-specific stages.
type Variant struct {
	Writer   string
	Editor   string
	Reviewer string
}

var layoutVariants = map[Layout]Variant{
	LayoutArticle:   variantFor(LayoutArticle),
	LayoutTutorial:  variantFor(LayoutTutorial),
	LayoutInterview: variantFor(LayoutInterview),
	LayoutChangelog: variantFor(LayoutChangelog),
}

func variantFor(l Layout) Variant {
	return Variant{
		Writer:   string(l) + "_writing",
		Editor:   string(l) + "_editing",
		Reviewer: string(l) + "_review",
	}
}

// ParseLayout validates caller input.
func ParseLayout(s string) (Layout, error) {
	l := Layout(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := layoutVariants[l]; !ok {
		return "", perrors.Contract("unknown layout %q", s)
	}
	return l, nil
}

// VariantFor resolves the stage set for a parsed layout. An unhandled layout
// is a programming error.
func VariantFor(l Layout) Variant {
	switch l {
	case LayoutArticle, LayoutTutorial, LayoutInterview, LayoutChangelog:
		return layoutVariants[l]
	default:
		panic(fmt.Sprintf("pipeline: unhandled layout %q", l))
	}
}
