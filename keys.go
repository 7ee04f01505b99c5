package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/keys"
	"github.com/tonimelisma/storj-go/internal/session"
)

func newImportKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-keys",
		Short: "Store bridge credentials and mnemonic for this bridge",
		Long: `Import the user, password and encryption mnemonic for the configured bridge.

The credentials are checked against the bridge first: the mnemonic must
decrypt the account's bucket names. They are then stored encrypted with a
passphrase. An empty passphrase lets later commands unlock without asking.`,
		Args: cobra.NoArgs,
		RunE: runImportKeys,
	}

	cmd.Flags().String("user", "", "bridge user (e-mail); prompted when empty")
	cmd.Flags().Bool("skip-verify", false, "store the keys without checking them against the bridge")

	return cmd
}

func newExportKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-keys",
		Short: "Print the stored credentials and mnemonic",
		Args:  cobra.NoArgs,
		RunE:  runExportKeys,
	}
}

func newDeleteKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-keys",
		Short: "Remove the stored credentials for this bridge",
		Args:  cobra.NoArgs,
		RunE:  runDeleteKeys,
	}
}

func newVerifyKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-keys",
		Short: "Check that the stored keys authenticate and decrypt bucket names",
		Args:  cobra.NoArgs,
		RunE:  runVerifyKeys,
	}
}

func newGenerateMnemonicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-mnemonic",
		Short: "Print a new random encryption mnemonic",
		Args:  cobra.NoArgs,
		RunE:  runGenerateMnemonic,
	}

	cmd.Flags().Int("strength", bridge.DefaultMnemonicStrength, "entropy bits (128-256, multiple of 32)")

	return cmd
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account on the bridge",
		Args:  cobra.NoArgs,
		RunE:  runRegister,
	}

	cmd.Flags().String("user", "", "e-mail for the new account; prompted when empty")

	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show information about the bridge",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
}

func runImportKeys(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	p := newPrompter(cmd.InOrStdin(), cc.Stderr)

	user, err := cmd.Flags().GetString("user")
	if err != nil {
		return err
	}

	if user == "" {
		if user, err = p.line("Bridge user (e-mail): "); err != nil {
			return err
		}
	}

	pass, err := p.secret("Bridge password: ")
	if err != nil {
		return err
	}

	mnemonic, err := p.line("Encryption mnemonic: ")
	if err != nil {
		return err
	}

	mnemonic = strings.Join(strings.Fields(mnemonic), " ")

	if !bridge.CheckMnemonic(mnemonic) {
		return errors.New("the mnemonic is not a valid BIP39 phrase")
	}

	k := keys.Keys{User: user, Pass: pass, Mnemonic: mnemonic}

	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer a.Close()

	if skip, _ := cmd.Flags().GetBool("skip-verify"); !skip {
		cc.Statusf("Verifying keys against %s...\n", a.ep)

		if err := a.sess.VerifyKeys(cmd.Context(), k); err != nil {
			return fmt.Errorf("keys rejected: %w", err)
		}
	}

	passphrase, err := p.newPassphrase()
	if err != nil {
		return err
	}

	if err := a.sess.ImportKeys(k, passphrase); err != nil {
		return err
	}

	cc.Statusf("Keys for %s stored in %s\n", a.ep.Key(), a.store.Dir())

	return nil
}

func runExportKeys(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	p := newPrompter(cmd.InOrStdin(), cc.Stderr)

	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer a.Close()

	k, err := a.storedKeys(p)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(k)
	}

	fmt.Fprintf(cc.Stdout, "user:     %s\n", k.User)
	fmt.Fprintf(cc.Stdout, "pass:     %s\n", k.Pass)
	fmt.Fprintf(cc.Stdout, "mnemonic: %s\n", k.Mnemonic)

	return nil
}

func runDeleteKeys(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.sess.KeysExist() {
		cc.Statusf("No keys stored for %s\n", a.ep)
		return nil
	}

	if err := a.sess.DeleteKeys(); err != nil {
		return err
	}

	cc.Statusf("Deleted keys for %s\n", a.ep)

	return nil
}

func runVerifyKeys(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	p := newPrompter(cmd.InOrStdin(), cc.Stderr)

	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer a.Close()

	k, err := a.storedKeys(p)
	if err != nil {
		return err
	}

	if err := a.sess.VerifyKeys(cmd.Context(), k); err != nil {
		if errors.Is(err, session.ErrKeysMismatch) {
			return fmt.Errorf("the mnemonic does not decrypt any bucket name of %s", k.User)
		}

		return err
	}

	cc.Statusf("Keys for %s are valid\n", k.User)

	return nil
}

func runGenerateMnemonic(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	strength, err := cmd.Flags().GetInt("strength")
	if err != nil {
		return err
	}

	m, err := bridge.GenerateMnemonic(strength)
	if err != nil {
		return err
	}

	fmt.Fprintln(cc.Stdout, m)

	return nil
}

func runRegister(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	p := newPrompter(cmd.InOrStdin(), cc.Stderr)

	user, err := cmd.Flags().GetString("user")
	if err != nil {
		return err
	}

	if user == "" {
		if user, err = p.line("E-mail: "); err != nil {
			return err
		}
	}

	pass, err := p.secret("Password: ")
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer a.Close()

	email, err := a.sess.Register(cmd.Context(), user, pass)
	if err != nil {
		return err
	}

	cc.Statusf("Registered %s. Activate the account via the e-mail sent by the bridge, then run 'storj-go import-keys'.\n", email)

	return nil
}

func runInfo(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.sess.Info(cmd.Context())
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(info)
	}

	fmt.Fprintf(cc.Stdout, "Title:       %s\n", info.Title)
	fmt.Fprintf(cc.Stdout, "Description: %s\n", info.Description)
	fmt.Fprintf(cc.Stdout, "Version:     %s\n", info.Version)
	fmt.Fprintf(cc.Stdout, "Host:        %s\n", info.Host)

	return nil
}
