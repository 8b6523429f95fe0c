package dsn

import (
	"fmt"

	"github.com/osteele/liquid"
)

// explanationTemplate is the human-readable first part of a report.
const explanationTemplate = `This is the mail system at {{ domain }}.  We are sorry to
inform you that the following message, which we believe you
sent, could not be delivered.

---
From: {{ sender }}
To: {{ recipient }}
Subject: {{ subject }}
---
`

// trailerTemplate introduces the raw provider event in the last part.
const trailerTemplate = `
---

original mailgun delivery status failure follows:

{{ event }}

`

var (
	engine      = liquid.NewEngine()
	explanation = mustParse(explanationTemplate)
	trailer     = mustParse(trailerTemplate)
)

func mustParse(source string) *liquid.Template {
	tpl, err := engine.ParseString(source)
	if err != nil {
		panic(fmt.Sprintf("dsn: parsing template: %v", err))
	}
	return tpl
}

func render(tpl *liquid.Template, bindings liquid.Bindings) (string, error) {
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("rendering report text: %w", err)
	}
	return out, nil
}
