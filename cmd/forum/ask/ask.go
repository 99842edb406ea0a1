// Package askcmder provides the ask command, which streams one answer from
// the completion service to the terminal.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/answerer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/cliui"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/config"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/credentials"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/logger"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/streamer"
)

type askCommander struct {
	endpoint string
	model    string
	timeout  string
	provider string

	questionID string
	pageID     string
	notesDivID string
	rawOut     string
	plain      bool

	configDir string
	debug     bool

	viper  *viper.Viper
	logger *slog.Logger
}

var askFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagTimeout,
	config.FlagProvider,
}

const askLongDesc string = `Ask the course LLM a question and print the answer.

The answer is streamed from the configured chat completions endpoint and
printed once complete. On a terminal it is rendered as markdown. Pass "-"
to read the question from stdin.

The API key comes from FORUM_LLM_API_KEY or "forum credentials set llm_api_key".

Examples:
  forum ask "Qu'est-ce qu'une suite de Cauchy ?"
  forum ask --timeout 90s --model CaLlm-course "..."
  echo "..." | forum ask -
  forum ask --raw-out stream.log "..."`

const askShortDesc string = "Ask the course LLM a question"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, askFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			question, err := readQuestion(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, cmd.OutOrStdout(), question)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)

	cmd.Flags().StringVar(&cmder.questionID, "question-id", "", "Question identifier sent in the id header")
	cmd.Flags().StringVar(&cmder.pageID, "page-id", "", "Page identifier sent in the idpage header")
	cmd.Flags().StringVar(&cmder.notesDivID, "notes-div-id", "", "Notes section identifier sent in the idnotesdiv header")
	cmd.Flags().StringVar(&cmder.rawOut, "raw-out", "", "Write the raw event stream to this file")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print the answer without markdown rendering")

	return cmd
}

func (c *askCommander) run(ctx context.Context, out io.Writer, question string) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	cfg := config.FromViper(c.viper)

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	a, err := answerer.FromConfig(cfg, creds, c.logger)
	if err != nil {
		return err
	}
	if err := a.Check(); err != nil {
		return err
	}

	var opts []streamer.ExecOption
	if c.rawOut != "" {
		f, err := os.Create(c.rawOut)
		if err != nil {
			return fmt.Errorf("creating raw output file: %w", err)
		}
		defer f.Close()
		opts = append(opts, streamer.WithTranscript(f))
	}

	q := answerer.Question{
		PageID:     c.pageID,
		NotesDivID: c.notesDivID,
		QuestionID: c.questionID,
		Text:       question,
	}

	interactive := cliui.IsTerminal(os.Stderr) && !c.debug

	var ans *llm.Answer
	ask := func() error {
		var err error
		ans, err = a.Answer(ctx, q, opts...)
		return err
	}

	if interactive {
		err = cliui.Step(os.Stderr, "Waiting for answer", ask)
	} else {
		err = ask()
	}
	if err != nil {
		return describe(err)
	}

	return c.print(out, ans.Text)
}

func (c *askCommander) print(out io.Writer, text string) error {
	if !c.plain && cliui.IsTerminal(os.Stdout) {
		rendered, err := cliui.RenderMarkdown(text, cliui.TermWidth(os.Stdout))
		if err == nil {
			text = rendered
		}
	}

	_, err := fmt.Fprintln(out, text)
	return err
}

// describe adds an operator hint to the known failure kinds.
func describe(err error) error {
	switch {
	case errors.Is(err, streamer.ErrConfiguration):
		return fmt.Errorf("%w\n\nCheck \"forum config list\" and \"forum credentials list\"", err)
	case errors.Is(err, streamer.ErrTimeout):
		return fmt.Errorf("%w\n\nRaise the deadline with --timeout", err)
	default:
		return err
	}
}

// readQuestion joins args into the question, or reads stdin when the only
// argument is "-".
func readQuestion(args []string, in io.Reader) (string, error) {
	question := strings.Join(args, " ")
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		question = string(b)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question cannot be empty")
	}
	return question, nil
}
