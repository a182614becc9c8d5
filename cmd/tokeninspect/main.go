package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
	"github.com/tendant/simple-idm-switchuser/pkg/tokensigner"
)

func main() {
	// Parse command line flags
	file := flag.String("file", "-", "File holding a serialized token or a sealed JWT (- for stdin)")
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key the JWT was signed with")
	issuer := flag.String("issuer", "simple-idm-switchuser", "Issuer of the JWT")
	outputFormat := flag.String("format", "full", "Output format: compact, full, or upgrade")
	flag.Parse()

	input, err := readInput(*file)
	if err != nil {
		slog.Error("Failed to read input", "file", *file, "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to read input: %v\n", err)
		os.Exit(1)
	}

	t, err := decode(input, *secret, *issuer)
	if err != nil {
		slog.Error("Failed to decode token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", errors.GetCode(err), errors.GetMessage(err))
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(t)
	case "full":
		printChain(t)
	case "upgrade":
		// Re-encode in the current format, legacy payloads gain the missing slot
		data, err := token.Serialize(t)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to serialize token: %v\n", err)
			os.Exit(1)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to format token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out.String())
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}

func readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

// decode accepts either the JSON envelope or a JWT sealed by tokensigner
func decode(input []byte, secret, issuer string) (token.Token, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return token.Deserialize(trimmed)
	}
	return tokensigner.NewSigner(secret, issuer).Open(string(trimmed))
}

func printChain(t token.Token) {
	depth := 0
	for t != nil {
		indent := strings.Repeat("  ", depth)
		fmt.Printf("%s=== %s ===\n", indent, kind(t))
		fmt.Printf("%sUser: %s\n", indent, t.UserIdentifier())
		fmt.Printf("%sFirewall: %s\n", indent, t.FirewallName())
		fmt.Printf("%sAuthenticated: %t\n", indent, t.IsAuthenticated())
		fmt.Printf("%sRoles: %s\n", indent, strings.Join(t.RoleNames(), ", "))

		sw, ok := t.(*token.SwitchUserToken)
		if !ok {
			return
		}
		if uri := sw.OriginatedFromURI(); uri != nil {
			fmt.Printf("%sOriginated from: %s\n", indent, *uri)
		}
		fmt.Printf("%sOriginal token:\n", indent)
		t = sw.OriginalToken()
		depth++
	}
}

func kind(t token.Token) string {
	if _, ok := t.(*token.SwitchUserToken); ok {
		return "SwitchUserToken"
	}
	return "AuthenticationToken"
}
