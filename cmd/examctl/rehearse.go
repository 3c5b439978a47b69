package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/campushire/skillcheck/internal/examclient"
	"github.com/campushire/skillcheck/internal/examsession"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/spf13/cobra"
)

// rehearsalCamera stands in for a webcam when staff rehearse an exam in a
// terminal. The stream is always active.
type rehearsalCamera struct{}

func (rehearsalCamera) Acquire(context.Context) (examsession.Stream, error) {
	return rehearsalStream{}, nil
}

type rehearsalStream struct{}

func (rehearsalStream) OnActiveChange(func(bool)) func() { return func() {} }
func (rehearsalStream) Release()                         {}

func rehearseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rehearse SKILL",
		Short: "Take an exam in the terminal without a camera (staff rehearsal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viperForCmd(cmd)
			email := v.GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			client := examclient.New(v.GetString("api"), v.GetString("token"))

			s, err := examsession.New(examsession.Config{
				SkillName: args[0],
				UserEmail: email,
				Client:    client,
				Camera:    rehearsalCamera{},
				Reporter:  client.Reporter(),
				Log:       cliLogger(config.Load()),
			})
			if err != nil {
				return err
			}
			return rehearse(cmd.Context(), s, os.Stdin, os.Stdout)
		},
	}
	addClientFlags(cmd)
	cmd.Flags().String("email", "", "Candidate email")
	return cmd
}

func rehearse(ctx context.Context, s *examsession.Session, in io.Reader, out io.Writer) error {
	defer s.Close(context.WithoutCancel(ctx))

	if err := s.Open(ctx); err != nil {
		fmt.Fprintln(out, s.Snapshot().Error)
		return err
	}
	view := s.Snapshot()
	fmt.Fprintf(out, "%s: %d questions, %d minutes, pass at %d%%. Press enter to start.\n",
		view.SkillName, view.Total, view.Remaining/60, view.PassingScore)

	lines := bufio.NewScanner(in)
	if !lines.Scan() {
		return nil
	}
	if err := s.Start(ctx); err != nil {
		fmt.Fprintln(out, s.Snapshot().Error)
		return err
	}

	for {
		view = s.Snapshot()
		if view.State.Terminal() {
			break
		}
		printQuestion(out, view)
		if !lines.Scan() {
			return nil
		}
		if s.State().Terminal() {
			break
		}

		switch cmd := strings.TrimSpace(lines.Text()); cmd {
		case "n":
			s.Next()
		case "p":
			s.Previous()
		case "s":
			if _, err := s.Submit(ctx); err != nil {
				fmt.Fprintln(out, err)
			}
		case "q":
			return nil
		default:
			opt, err := strconv.Atoi(cmd)
			if err != nil || opt < 1 || opt > len(view.Question.Options) {
				fmt.Fprintln(out, "enter 1-4, n, p, s or q")
				continue
			}
			s.SelectAnswer(view.Index, opt-1)
		}
	}

	printResult(out, s.Snapshot())
	return nil
}

func printQuestion(out io.Writer, v examsession.Snapshot) {
	fmt.Fprintf(out, "\n[%s] Question %d/%d (%d answered)\n%s\n", v.Clock(), v.Index+1, v.Total, v.Answered(), v.Question.Question)
	for i, opt := range v.Question.Options {
		mark := " "
		if v.Answers[v.Index] == i {
			mark = "*"
		}
		fmt.Fprintf(out, " %s %d) %s\n", mark, i+1, opt)
	}
	fmt.Fprint(out, "> ")
}

func printResult(out io.Writer, v examsession.Snapshot) {
	if v.Error != "" {
		fmt.Fprintln(out, v.Error)
	}
	r := v.Result
	if r == nil {
		return
	}
	verdict := "not passed"
	if r.Passed {
		verdict = "passed, skill verified"
	}
	fmt.Fprintf(out, "\nScore %d%% (%d/%d correct, pass at %d%%): %s\n",
		r.Score, r.CorrectAnswers, r.TotalQuestions, r.PassingScore, verdict)
	for i, q := range r.Results {
		fmt.Fprintf(out, "%d. %s\n   yours: %s  correct: %s\n", i+1, q.Question, q.UserAnswer, answerOrDash(q))
	}
}

func answerOrDash(q model.QuestionResult) string {
	if q.CorrectAnswer == "" {
		return "-"
	}
	return q.CorrectAnswer
}
