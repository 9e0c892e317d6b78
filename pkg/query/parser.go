// Package query parses textual edit statements into edit instructions.
//
// The statement grammar, keywords case-insensitive:
//
//	IN ns/docid [, ns2/docid2 ...]
//	  [AS CORRECTION OF set [WITH class=...] | AS ALTERNATIVE]
//	  (ADD|EDIT|DELETE) type [OF set | ID id]
//	  [WITH field=value [field=value ...]]
//	  [FOR targetid [targetid ...]]
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lingtools/docserve/pkg/document"
)

// SyntaxError reports a malformed edit statement, citing the offending
// token and its byte position in the statement.
type SyntaxError struct {
	Msg   string
	Token string
	Pos   int
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return "query: " + e.Msg
	}
	return fmt.Sprintf("query: %s (at %q, position %d)", e.Msg, e.Token, e.Pos)
}

func syntaxErr(msg string, tok token) *SyntaxError {
	return &SyntaxError{Msg: msg, Token: tok.text, Pos: tok.pos}
}

type parser struct {
	words []token
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.words) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.words[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

// need consumes the next token, failing with what when the statement ends.
func (p *parser) need(what string) (token, error) {
	if p.done() {
		return token{}, &SyntaxError{Msg: "expected " + what + ", got end of statement"}
	}
	return p.next(), nil
}

func (p *parser) peekKeyword(kw string) bool {
	return !p.done() && strings.EqualFold(p.peek().text, kw)
}

var keywords = map[string]bool{
	"IN": true, "ADD": true, "EDIT": true, "DELETE": true,
	"WITH": true, "FOR": true, "AS": true,
}

func isKeyword(t token) bool {
	return keywords[strings.ToUpper(t.text)]
}

// Parse parses one statement into the batch. The first statement of a batch
// must begin with IN; later statements may omit it and inherit the document
// selectors accumulated so far. Every parsed edit is recorded for all
// selected documents.
func (b *Batch) Parse(statement string) error {
	p := &parser{words: tokenize(statement)}
	edit := &Edit{Form: FormDirect, Timestamp: time.Now()}

	if p.peekKeyword("IN") {
		p.next()
		for !p.done() && !isKeyword(p.peek()) {
			w := p.next()
			if w.text == "," {
				continue
			}
			ns, id, found := strings.Cut(w.text, "/")
			if !found || ns == "" || id == "" {
				return syntaxErr("expected \"namespace/documentID\" after IN statement", w)
			}
			b.addKey(document.Key{Namespace: ns, ID: id})
		}
	} else if len(b.keys) == 0 {
		return syntaxErr("query must start with an IN statement", p.peek())
	}
	if len(b.keys) == 0 {
		return &SyntaxError{Msg: "no documents specified in IN statement"}
	}

	if p.peekKeyword("AS") {
		p.next()
		w, err := p.need("CORRECTION or ALTERNATIVE after AS")
		if err != nil {
			return err
		}
		switch strings.ToUpper(w.text) {
		case "CORRECTION":
			if !p.peekKeyword("OF") {
				return syntaxErr("expected AS CORRECTION OF $set", p.peek())
			}
			p.next()
			set, err := p.need("annotation set after AS CORRECTION OF")
			if err != nil {
				return err
			}
			edit.Form = FormCorrection
			edit.CorrectionSet = set.text
			if p.peekKeyword("WITH") {
				p.next()
				var corr Assignments
				if err := p.parseAssignments(&corr); err != nil {
					return err
				}
				if corr.Class != nil {
					edit.CorrectionClass = *corr.Class
				}
			}
		case "ALTERNATIVE":
			edit.Form = FormAlternative
		default:
			return syntaxErr("expected CORRECTION or ALTERNATIVE after AS", w)
		}
	}

	verb, err := p.need("action statement ADD, EDIT or DELETE")
	if err != nil {
		return err
	}
	switch strings.ToUpper(verb.text) {
	case "ADD":
		edit.Action = ActionAdd
	case "EDIT":
		edit.Action = ActionEdit
	case "DELETE":
		edit.Action = ActionDelete
	default:
		return syntaxErr("expected action statement ADD, EDIT or DELETE", verb)
	}

	if err := p.parseActor(edit); err != nil {
		return err
	}

	if edit.Action == ActionAdd {
		edit.Form = FormNew
	}
	if edit.Action == ActionDelete {
		// a bare DELETE clears the annotation's content rather than
		// removing the annotation object
		empty := ""
		if document.TypeCategory(edit.Actor.Type) == document.CategoryText {
			edit.Assign.Text = &empty
		} else {
			edit.Assign.Class = &empty
		}
	}

	if p.peekKeyword("WITH") {
		p.next()
		if err := p.parseAssignments(&edit.Assign); err != nil {
			return err
		}
	}

	if p.peekKeyword("FOR") {
		p.next()
		for !p.done() {
			if isKeyword(p.peek()) {
				return syntaxErr("unexpected keyword in FOR clause", p.peek())
			}
			w := p.next()
			if w.text == "," {
				continue
			}
			edit.Targets = append(edit.Targets, w.text)
		}
	}

	if !p.done() {
		return syntaxErr("expected statement, got "+p.peek().text, p.peek())
	}

	if len(edit.Targets) == 0 && edit.Actor.ID == "" {
		return &SyntaxError{Msg: "no targets found (no FOR statement?) and no actor id was provided"}
	}

	b.addEdit(edit)
	return nil
}

func (p *parser) parseActor(edit *Edit) error {
	w, err := p.need("annotation type")
	if err != nil {
		return err
	}
	if !document.KnownType(w.text) {
		return syntaxErr("no such annotation type: "+w.text, w)
	}
	edit.Actor.Type = w.text
	if p.peekKeyword("OF") {
		p.next()
		set, err := p.need("annotation set after OF")
		if err != nil {
			return err
		}
		edit.Actor.Set = set.text
	} else if p.peekKeyword("ID") {
		p.next()
		id, err := p.need("identifier after ID")
		if err != nil {
			return err
		}
		edit.Actor.ID = id.text
	}
	return nil
}

var assignmentFields = map[string]bool{
	"class": true, "annotator": true, "annotatortype": true, "id": true,
	"n": true, "text": true, "insertleft": true, "insertright": true,
	"confidence": true,
}

// parseAssignments consumes field=value pairs until FOR, a bare comma, or
// the end of the statement. A pair may be a single field=value token or a
// field token followed by its value; split and merge are bare markers.
func (p *parser) parseAssignments(into *Assignments) error {
	for !p.done() {
		w := p.peek()
		if isKeyword(w) {
			return nil
		}
		if w.text == "," {
			p.next()
			return nil
		}
		p.next()

		field, val, joined := strings.Cut(w.text, "=")
		field = strings.ToLower(field)

		switch {
		case field == "split":
			into.Split = true
			continue
		case field == "merge":
			into.Merge = true
			continue
		case !assignmentFields[field]:
			return syntaxErr("unknown variable in WITH statement: "+w.text, w)
		}

		if !joined {
			v, err := p.need("value for " + field)
			if err != nil {
				return err
			}
			if v.text == "=" {
				if v, err = p.need("value for " + field); err != nil {
					return err
				}
			}
			val = strings.TrimPrefix(v.text, "=")
		}

		switch field {
		case "class":
			into.Class = &val
		case "text":
			into.Text = &val
		case "insertleft":
			into.InsertLeft = &val
		case "insertright":
			into.InsertRight = &val
		case "annotator":
			into.Annotator = val
		case "annotatortype":
			into.AnnotatorType = val
		case "id":
			into.ID = val
		case "n":
			into.N = val
		case "confidence":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return syntaxErr("invalid confidence value: "+val, w)
			}
			into.Confidence = &f
		}
	}
	return nil
}
