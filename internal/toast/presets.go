package toast

import (
	"fmt"
	"time"
)

// Step is one entry of WorkflowStates.
type Step struct {
	Message     string
	Category    Category
	Buttons     []Button
	AutoAdvance bool
	Delay       time.Duration
}

// WorkflowStates numbers each step in its title ("Deploy - Step 2/3").
func WorkflowStates(title string, steps []Step) []State {
	out := make([]State, 0, len(steps))
	for i, s := range steps {
		out = append(out, State{
			Title:            fmt.Sprintf("%s - Step %d/%d", title, i+1, len(steps)),
			Message:          s.Message,
			Category:         s.Category,
			Buttons:          s.Buttons,
			AutoAdvance:      s.AutoAdvance,
			AutoAdvanceDelay: s.Delay,
		})
	}
	return out
}

// ProgressStates auto-advances through messages every stepDelay. The last
// state is a Success with a Done button that closes the toast.
func ProgressStates(title string, messages []string, stepDelay time.Duration) []State {
	out := make([]State, 0, len(messages))
	for i, m := range messages {
		last := i == len(messages)-1
		st := State{
			Title:            title,
			Message:          m,
			Category:         CategoryInfo,
			AutoAdvance:      !last,
			AutoAdvanceDelay: stepDelay,
		}
		if last {
			st.Category = CategorySuccess
			st.Buttons = []Button{{Text: "Done", Style: "primary", CloseOnClick: true}}
		}
		out = append(out, st)
	}
	return out
}

// QuestionStates presents one question per state with its answers as
// buttons.
func QuestionStates(title string, questions []string, answers [][]Button) []State {
	out := make([]State, 0, len(questions))
	for i, q := range questions {
		st := State{
			Title:    fmt.Sprintf("%s - Question %d/%d", title, i+1, len(questions)),
			Message:  q,
			Category: CategoryInfo,
		}
		if i < len(answers) {
			st.Buttons = answers[i]
		}
		out = append(out, st)
	}
	return out
}

func NextButton(text string) Button {
	if text == "" {
		text = "Next"
	}
	return Button{Text: text, Style: "primary", Advance: true}
}

func JumpButton(text string, target int) Button {
	return Button{Text: text, Style: "info", TargetState: &target}
}

func ChoiceButton(text string, selector func(toastID string) int) Button {
	return Button{Text: text, Style: "warning", Selector: selector}
}

func SkipAndAdvanceButton(text string, skip ...int) Button {
	if text == "" {
		text = "Skip Steps"
	}
	return Button{Text: text, Style: "outline-warning", SkipStates: skip, Advance: true}
}

func CloseButton(text string) Button {
	if text == "" {
		text = "Close"
	}
	return Button{Text: text, Style: "secondary", CloseOnClick: true}
}
