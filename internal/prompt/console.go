// Package prompt implements the interactive console fallbacks: picking an
// application for an ambiguous match and entering a missing employer address.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/applytrack/internal/types"
)

// Console reads answers line by line from in and writes questions to out.
// It satisfies both the address and the match prompter contracts.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a prompter over the given streams, usually os.Stdin and
// os.Stdout.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// ResolveAddress asks the user for the employer's postal address. Entering
// nothing skips the item; picking a listed candidate accepts its address.
func (c *Console) ResolveAddress(ctx context.Context, item types.UnresolvedItem) (*types.AddressRecord, error) {
	fmt.Fprintf(c.out, "\nNo confident address found for %q.\n", item.Employer)
	withAddress := c.printCandidates(item.Candidates)

	if len(withAddress) > 0 {
		answer, err := c.ask(ctx, "Pick a candidate number, enter an address as \"<street> <no>, <postal> <city>\", or press Enter to skip: ")
		if err != nil {
			return nil, err
		}
		return c.interpretAddressAnswer(answer, withAddress)
	}

	answer, err := c.ask(ctx, "Enter an address as \"<street> <no>, <postal> <city>\", or press Enter to skip: ")
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, nil
	}
	return parseAnswerAddress(answer)
}

// PickApplication asks the user which existing application an ambiguous
// record belongs to. Entering nothing leaves the item pending.
func (c *Console) PickApplication(ctx context.Context, item types.UnresolvedItem) (uuid.UUID, bool, error) {
	fmt.Fprintf(c.out, "\nAmbiguous match for %q", item.Employer)
	if item.Role != "" {
		fmt.Fprintf(c.out, " (%s)", item.Role)
	}
	fmt.Fprintf(c.out, ":\n")
	for i, cand := range item.Candidates {
		fmt.Fprintf(c.out, "  [%d] %s (score %.2f)\n", i+1, cand.Label, cand.Score)
	}

	answer, err := c.ask(ctx, "Pick a number, or press Enter to leave it for later: ")
	if err != nil {
		return uuid.Nil, false, err
	}
	if answer == "" {
		return uuid.Nil, false, nil
	}

	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(item.Candidates) {
		fmt.Fprintf(c.out, "Not a valid choice, leaving item pending.\n")
		return uuid.Nil, false, nil
	}
	return item.Candidates[n-1].ApplicationID, true, nil
}

// printCandidates lists candidates that carry an address and returns them in
// listed order.
func (c *Console) printCandidates(candidates []types.Candidate) []types.Candidate {
	withAddress := make([]types.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Address == nil {
			continue
		}
		withAddress = append(withAddress, cand)
		label := cand.Label
		if cand.Score > 0 {
			label = fmt.Sprintf("%s (similarity %.2f)", label, cand.Score)
		}
		fmt.Fprintf(c.out, "  [%d] %s: %s\n", len(withAddress), label, cand.Address.OneLine())
	}
	return withAddress
}

func (c *Console) interpretAddressAnswer(answer string, withAddress []types.Candidate) (*types.AddressRecord, error) {
	if answer == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(withAddress) {
			fmt.Fprintf(c.out, "Not a valid choice, leaving item pending.\n")
			return nil, nil
		}
		rec := *withAddress[n-1].Address
		return &rec, nil
	}
	return parseAnswerAddress(answer)
}

// ask prints the question and reads one trimmed line. The context is checked
// before blocking so a cancelled run does not hang on stdin.
func (c *Console) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.out, question)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// parseAnswerAddress parses a typed one-line address.
func parseAnswerAddress(answer string) (*types.AddressRecord, error) {
	parts := strings.SplitN(answer, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected \"<street> <no>, <postal> <city>\", got %q", answer)
	}
	street := strings.TrimSpace(parts[0])
	rest := strings.Fields(strings.TrimSpace(parts[1]))
	if street == "" || len(rest) < 2 {
		return nil, fmt.Errorf("expected \"<street> <no>, <postal> <city>\", got %q", answer)
	}
	return &types.AddressRecord{
		Street:     street,
		PostalCode: rest[0],
		City:       strings.Join(rest[1:], " "),
	}, nil
}
