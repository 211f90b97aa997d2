// Command nftmartctl holds operator utilities: encrypting the operator key
// for the daemon and producing the signature headers mutating API calls need.
//
//	nftmartctl encrypt-key -key <hex> -password <pw> -out operator.key
//	nftmartctl sign -key <hex> -method POST -path /v1/orders -body order.json
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/nftmart/internal/crypto"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "encrypt-key":
		err = encryptKey(os.Args[2:])
	case "sign":
		err = sign(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "nftmartctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nftmartctl <encrypt-key|sign> [flags]")
}

func encryptKey(args []string) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ExitOnError)
	key := fs.String("key", os.Getenv("NFTMART_OPERATOR_PRIVATE_KEY"), "hex private key")
	password := fs.String("password", os.Getenv("NFTMART_OPERATOR_KEY_PASSWORD"), "encryption password")
	out := fs.String("out", "operator.key", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" || *password == "" {
		return fmt.Errorf("encrypt-key: -key and -password are required")
	}

	signer, err := crypto.NewSigner(*key)
	if err != nil {
		return err
	}
	data, err := crypto.EncryptKey(*key, *password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("encrypt-key: write: %w", err)
	}
	fmt.Printf("wrote %s for %s\n", *out, signer.Address().Hex())
	return nil
}

// sign prints the headers for one request, in curl -H form.
func sign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	key := fs.String("key", os.Getenv("NFTMART_PRIVATE_KEY"), "hex private key")
	method := fs.String("method", "POST", "HTTP method")
	path := fs.String("path", "", "request path, e.g. /v1/orders")
	bodyFile := fs.String("body", "", "file holding the request body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" || *path == "" {
		return fmt.Errorf("sign: -key and -path are required")
	}

	signer, err := crypto.NewSigner(*key)
	if err != nil {
		return err
	}
	var body []byte
	if *bodyFile != "" {
		if body, err = os.ReadFile(*bodyFile); err != nil {
			return fmt.Errorf("sign: read body: %w", err)
		}
	}

	ts := time.Now().Unix()
	nonce := uuid.NewString()
	sig, err := signer.SignRequest(*method, *path, ts, nonce, body)
	if err != nil {
		return err
	}
	fmt.Printf("-H 'X-Account: %s' -H 'X-Timestamp: %s' -H 'X-Nonce: %s' -H 'X-Signature: %s'\n",
		signer.Address().Hex(), strconv.FormatInt(ts, 10), nonce, sig)
	return nil
}
