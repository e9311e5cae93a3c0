package ctl

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/filex"
	"github.com/profolio/profolio/internal/netx"
	"github.com/urfave/cli/v2"
)

func genkeyCmd() *cli.Command {
	var length int
	return &cli.Command{
		Name:  "genkey",
		Usage: "Print a random hex secret for ENCRYPTION_KEY or JWT_SECRET",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "number of random bytes (output is twice as many hex characters)",
				Value:       32,
				Destination: &length,
			},
		},
		Action: func(c *cli.Context) error {
			if length < 16 {
				return errors.New("length must be at least 16 bytes")
			}
			key, err := cryptox.GenerateToken(length)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, key)
			return err
		},
	}
}

func encryptCmd() *cli.Command {
	var keyEnv string
	return &cli.Command{
		Name:      "encrypt",
		Usage:     "Encrypt a value the way the server stores it at rest",
		ArgsUsage: "[value]",
		Flags:     []cli.Flag{keyEnvFlag(&keyEnv)},
		Action: func(c *cli.Context) error {
			enc, err := encryptor(c, keyEnv)
			if err != nil {
				return err
			}
			value, err := inputValue(c)
			if err != nil {
				return err
			}
			out, err := enc.Encrypt(value)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, out)
			return err
		},
	}
}

func decryptCmd() *cli.Command {
	var keyEnv string
	return &cli.Command{
		Name:      "decrypt",
		Usage:     "Decrypt a value produced by the server or by encrypt",
		ArgsUsage: "[ciphertext]",
		Flags:     []cli.Flag{keyEnvFlag(&keyEnv)},
		Action: func(c *cli.Context) error {
			enc, err := encryptor(c, keyEnv)
			if err != nil {
				return err
			}
			value, err := inputValue(c)
			if err != nil {
				return err
			}
			out, err := enc.Decrypt(value)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, out)
			return err
		},
	}
}

func hashCmd() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the hex SHA-256 of a value",
		ArgsUsage: "[value]",
		Action: func(c *cli.Context) error {
			value, err := inputValue(c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, cryptox.Hash(value))
			return err
		},
	}
}

func documentsCmd() *cli.Command {
	return &cli.Command{
		Name:  "documents",
		Usage: "Transfer documents through presigned URLs",
		Subcommands: []*cli.Command{
			uploadCmd(),
			downloadCmd(),
		},
	}
}

func uploadCmd() *cli.Command {
	var url, file, contentType string
	return &cli.Command{
		Name:  "upload",
		Usage: "PUT a local file to a presigned upload URL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "presigned PUT URL", Required: true, Destination: &url},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "file to upload", Required: true, Destination: &file},
			&cli.StringFlag{Name: "content-type", Usage: "defaults to a guess from the file extension", Destination: &contentType},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(file))
			}
			if err := netx.UploadToPresignedURL(c.Context, url, f, contentType); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "uploaded %s\n", filepath.Base(file))
			return err
		},
	}
}

func downloadCmd() *cli.Command {
	var url, outDir, name string
	return &cli.Command{
		Name:  "download",
		Usage: "GET a presigned download URL into a local directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "presigned GET URL", Required: true, Destination: &url},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "target directory", Value: "documents", Destination: &outDir},
			&cli.StringFlag{Name: "name", Usage: "file name to save as", Required: true, Destination: &name},
		},
		Action: func(c *cli.Context) error {
			if name != filepath.Base(name) || name == "." || name == ".." {
				return fmt.Errorf("invalid file name %q", name)
			}
			dir, err := filex.EnsureDir(outDir)
			if err != nil {
				return err
			}

			pr, pw := io.Pipe()
			defer pr.Close()
			go func() {
				_, err := netx.DownloadFromPresignedURL(c.Context, url, pw)
				_ = pw.CloseWithError(err)
			}()

			path := filepath.Join(dir, name)
			n, err := filex.WriteFileAtomic(path, pr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "saved %s (%d bytes)\n", path, n)
			return err
		},
	}
}

func encryptor(c *cli.Context, keyEnv string) (*cryptox.Encryptor, error) {
	pass, err := passphrase(c, keyEnv)
	if err != nil {
		return nil, err
	}
	return cryptox.NewEncryptor(pass)
}
