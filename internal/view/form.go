package view

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"studylink/internal/studylink"
)

// ErrInvalidDraft is returned when a non-interactive form cannot produce a valid draft.
var ErrInvalidDraft = errors.New("invalid group details")

// formField is one prompt of the create form. Key matches the field name
// used in validation messages.
type formField struct {
	Key     string
	Label   string
	Example string
	get     func(*studylink.Draft) string
	set     func(*studylink.Draft, string) error
}

func textField(key, label, example string, p func(*studylink.Draft) *string) formField {
	return formField{
		Key:     key,
		Label:   label,
		Example: example,
		get:     func(d *studylink.Draft) string { return *p(d) },
		set: func(d *studylink.Draft, v string) error {
			*p(d) = v
			return nil
		},
	}
}

var formFields = []formField{
	textField("name", "Group name", "Advanced Calculus Study Group", func(d *studylink.Draft) *string { return &d.Name }),
	textField("course_code", "Course code", "MATH146", func(d *studylink.Draft) *string { return &d.Subject }),
	textField("description", "Description", "optional", func(d *studylink.Draft) *string { return &d.Description }),
	{
		Key:     "max_members",
		Label:   "Max members",
		Example: "10",
		get: func(d *studylink.Draft) string {
			if d.MaxMembers == 0 {
				return ""
			}
			return strconv.Itoa(d.MaxMembers)
		},
		set: func(d *studylink.Draft, v string) error {
			if v == "" {
				d.MaxMembers = 0
				return nil
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("max_members must be a number")
			}
			d.MaxMembers = n
			return nil
		},
	},
	textField("meeting_day", "Meeting day", "Monday", func(d *studylink.Draft) *string { return &d.MeetingDay }),
	textField("meeting_time", "Meeting time", "18:00", func(d *studylink.Draft) *string { return &d.MeetingTime }),
	textField("building", "Building", "Science Building", func(d *studylink.Draft) *string { return &d.Building }),
	textField("room", "Floor / room", "2", func(d *studylink.Draft) *string { return &d.Floor }),
}

// Form collects a draft from a reader, one field per line.
type Form struct {
	in  *bufio.Reader
	out io.Writer
	// Interactive forms print prompts and ask again after invalid input.
	Interactive bool
}

// NewForm creates a form reading from in. It is interactive when in is a terminal.
func NewForm(in io.Reader, out io.Writer) *Form {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Form{in: bufio.NewReader(in), out: out, Interactive: interactive}
}

// Fill asks for every field of d that is still empty, then validates the
// result. An interactive form re-asks fields that fail validation; otherwise
// the field errors are written to out and ErrInvalidDraft is returned.
func (f *Form) Fill(d *studylink.Draft) error {
	if f.Interactive {
		fmt.Fprintln(f.out, "Create a Study Group")
		fmt.Fprintln(f.out, "Fill out the details below to create a new study group.")
		fmt.Fprintln(f.out)
	}

	ask := make(map[string]bool, len(formFields))
	for _, field := range formFields {
		ask[field.Key] = field.get(d) == ""
	}

	for {
		for _, field := range formFields {
			if !ask[field.Key] {
				continue
			}
			if err := f.askField(field, d); err != nil {
				return err
			}
		}

		*d = TrimDraft(*d)
		errs := ValidateDraft(*d)
		if errs == nil {
			return nil
		}
		RenderFieldErrors(f.out, errs)
		if !f.Interactive {
			return ErrInvalidDraft
		}
		for _, field := range formFields {
			_, bad := errs[field.Key]
			ask[field.Key] = bad
		}
	}
}

func (f *Form) askField(field formField, d *studylink.Draft) error {
	for {
		if f.Interactive {
			fmt.Fprintf(f.out, "%s (e.g., %s): ", field.Label, field.Example)
		}
		line, err := f.in.ReadString('\n')
		switch {
		case err == nil:
		case errors.Is(err, io.EOF) && f.Interactive && line == "":
			fmt.Fprintln(f.out)
			return fmt.Errorf("reading %s: %w", field.Key, io.ErrUnexpectedEOF)
		case errors.Is(err, io.EOF):
			// Piped input may end early; missing fields fail validation.
		default:
			return fmt.Errorf("reading %s: %w", field.Key, err)
		}

		value := strings.TrimSpace(line)
		if value == "" {
			return field.set(d, "")
		}
		if err := field.set(d, value); err != nil {
			if !f.Interactive {
				return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
			}
			fmt.Fprintln(f.out, "  "+err.Error())
			continue
		}
		return nil
	}
}

// RenderFieldErrors writes validation messages in form order.
func RenderFieldErrors(w io.Writer, errs map[string]string) {
	for _, field := range formFields {
		if msg, ok := errs[field.Key]; ok {
			fmt.Fprintf(w, "  %s: %s\n", field.Label, msg)
		}
	}
	if msg, ok := errs["detail"]; ok {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}

// RenderPreview writes the card the draft would become.
func RenderPreview(w io.Writer, d studylink.Draft, width int) {
	fmt.Fprintln(w, "Preview")
	fmt.Fprintln(w, rule(width))
	Card{Group: d.Preview(), Width: width}.Render(w)
}
