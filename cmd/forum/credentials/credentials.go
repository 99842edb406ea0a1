// Package credentialscmder provides the credentials command for storing the
// secrets the forum service needs.
package credentialscmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/cliui"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/credentials"
)

const credentialsLongDesc string = `Store secrets used by the forum service.

Secrets are stored in credentials.toml in the .forum/ directory with 0600
permissions. An environment variable with the same name (FORUM_LLM_API_KEY,
FORUM_MAILER_PASSWORD) always takes precedence over the stored value.

Supported secrets: llm_api_key, mailer_password

Examples:
  forum credentials set llm_api_key           Prompt for the LLM API key
  echo $KEY | forum credentials set llm_api_key
  forum credentials list                      List stored secrets
  forum credentials remove mailer_password    Remove a stored secret`

const credentialsShortDesc string = "Store secrets used by the forum service"

func NewCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: credentialsShortDesc,
		Long:  credentialsLongDesc,
	}

	cmd.AddCommand(&cobra.Command{
		Use:               "set <secret>",
		Short:             "Store a secret read from stdin",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSecrets,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd.OutOrStdout(), cmd.InOrStdin(), args[0], configDir)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:               "remove <secret>",
		Short:             "Remove a stored secret",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSecrets,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runRemove(cmd.OutOrStdout(), args[0], configDir)
		},
	})

	return cmd
}

func runSet(out io.Writer, in io.Reader, name, configDir string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	if !credentials.IsSupportedSecret(name) {
		return fmt.Errorf("unsupported secret: %q\n\nSupported secrets: %s",
			name, strings.Join(credentials.SupportedSecrets(), ", "))
	}

	value, err := readSecret(out, in, name)
	if err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("secret cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Set(name, value); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(name),
		cliui.DimStyle.Render("(overridden by "+credentials.EnvVar(name)+")"),
	)
	return nil
}

func runList(out io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	names, err := mgr.List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Fprintf(out, "\n  %s No stored secrets.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'forum credentials set <secret>' to store one.\n")
		fmt.Fprintf(out, "  Supported secrets: %s\n\n", strings.Join(credentials.SupportedSecrets(), ", "))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored secrets"))
	for _, name := range names {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(name),
			cliui.DimStyle.Render("← "+credentials.EnvVar(name)),
		)
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, name, configDir string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Remove(name); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Removed %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(name))

	return nil
}

// readSecret reads the first line of in. When in is an interactive terminal
// it prompts with hidden input instead.
func readSecret(out io.Writer, in io.Reader, name string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter %s (%s): ", name, credentials.EnvVar(name))

		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}

func completeSecrets(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return credentials.SupportedSecrets(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
