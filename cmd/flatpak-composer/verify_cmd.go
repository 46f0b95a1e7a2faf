package main

import (
	"fmt"

	"github.com/open-edge-platform/flatpak-composer/internal/config"
	"github.com/open-edge-platform/flatpak-composer/internal/image/imagesign"
	"github.com/spf13/cobra"
)

var verifyKeyFile string

// createVerifyCommand creates the verify subcommand
func createVerifyCommand() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify [flags] OCI_TAR",
		Short: "Verify the signature of an OCI bundle tarball",
		Args:  cobra.ExactArgs(1),
		RunE:  executeVerify,
	}
	verifyCmd.Flags().StringVarP(&verifyKeyFile, "key", "k", "",
		"Armored public keyring (default: signing.key_file from config)")
	return verifyCmd
}

// executeVerify handles the verify command logic
func executeVerify(cmd *cobra.Command, args []string) error {
	keyFile := verifyKeyFile
	if keyFile == "" {
		keyFile = config.Global().Signing.KeyFile
	}
	if keyFile == "" {
		return fmt.Errorf("no key given, use --key or set signing.key_file")
	}

	image := args[0]
	keyID, err := imagesign.VerifyImage(image, image+imagesign.SignatureSuffix, keyFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "good signature from key %s\n", keyID)
	return nil
}
