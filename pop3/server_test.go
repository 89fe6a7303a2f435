package pop3

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

type testMessage struct {
	uid     string
	literal string
}

// testServer is a scripted POP3 server for faketransport.
type testServer struct {
	mu sync.Mutex

	username string
	password string
	authErr  string

	messages []testMessage
	deleted  map[int]bool

	authorized bool
	user       string

	// silent commands get no response.
	silent map[string]bool
}

func newTestServer(messages ...testMessage) *testServer {
	return &testServer{
		username: "user",
		password: "secret",
		messages: messages,
		deleted:  make(map[int]bool),
		silent:   make(map[string]bool),
	}
}

func (s *testServer) handle(line string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, arg, _ := strings.Cut(line, " ")
	cmd = strings.ToUpper(cmd)

	if s.silent[cmd] {
		return nil
	}

	switch cmd {
	case "CAPA":
		return []string{"+OK capability list follows", "TOP", "UIDL", "STLS", "SASL PLAIN LOGIN", "."}

	case "STLS":
		return []string{"+OK begin TLS negotiation"}

	case "USER":
		s.user = arg
		return []string{"+OK"}

	case "PASS":
		if s.authErr != "" {
			return []string{"-ERR " + s.authErr}
		}

		if s.user != s.username || arg != s.password {
			return []string{"-ERR [AUTH] invalid password"}
		}

		s.authorized = true
		s.deleted = make(map[int]bool)

		return []string{"+OK logged in"}

	case "QUIT":
		if s.authorized {
			s.commit()
		}

		s.authorized = false

		return []string{"+OK bye"}
	}

	if !s.authorized {
		return []string{"-ERR not authorized"}
	}

	switch cmd {
	case "STAT":
		count, size := 0, 0

		for i, msg := range s.messages {
			if !s.deleted[i+1] {
				count++
				size += len(msg.literal)
			}
		}

		return []string{fmt.Sprintf("+OK %d %d", count, size)}

	case "LIST":
		if arg != "" {
			msg, ok := s.message(arg)
			if !ok {
				return []string{"-ERR no such message"}
			}

			return []string{fmt.Sprintf("+OK %s %d", arg, len(msg.literal))}
		}

		lines := []string{"+OK scan listing follows"}

		for i, msg := range s.messages {
			if !s.deleted[i+1] {
				lines = append(lines, fmt.Sprintf("%d %d", i+1, len(msg.literal)))
			}
		}

		return append(lines, ".")

	case "UIDL":
		if arg != "" {
			msg, ok := s.message(arg)
			if !ok {
				return []string{"-ERR no such message"}
			}

			return []string{fmt.Sprintf("+OK %s %s", arg, msg.uid)}
		}

		lines := []string{"+OK unique-id listing follows"}

		for i, msg := range s.messages {
			if !s.deleted[i+1] {
				lines = append(lines, fmt.Sprintf("%d %s", i+1, msg.uid))
			}
		}

		return append(lines, ".")

	case "TOP":
		index, count, _ := strings.Cut(arg, " ")

		msg, ok := s.message(index)
		if !ok {
			return []string{"-ERR no such message"}
		}

		n, _ := strconv.Atoi(count)

		return s.body(msg, n)

	case "RETR":
		msg, ok := s.message(arg)
		if !ok {
			return []string{"-ERR no such message"}
		}

		return s.body(msg, -1)

	case "DELE":
		if _, ok := s.message(arg); !ok {
			return []string{"-ERR no such message"}
		}

		index, _ := strconv.Atoi(arg)
		s.deleted[index] = true

		return []string{"+OK marked"}

	case "NOOP":
		return []string{"+OK"}

	default:
		return []string{"-ERR unknown command"}
	}
}

func (s *testServer) message(arg string) (testMessage, bool) {
	index, err := strconv.Atoi(arg)
	if err != nil || index < 1 || index > len(s.messages) || s.deleted[index] {
		return testMessage{}, false
	}

	return s.messages[index-1], true
}

// body returns the header and at most n body lines of msg, all of it if n < 0, dot-stuffed.
func (s *testServer) body(msg testMessage, n int) []string {
	lines := strings.Split(strings.TrimSuffix(msg.literal, "\r\n"), "\r\n")

	out := []string{"+OK message follows"}
	inBody := false
	bodyLines := 0

	for _, line := range lines {
		if inBody {
			if n >= 0 && bodyLines >= n {
				break
			}

			bodyLines++
		}

		if strings.HasPrefix(line, ".") {
			line = "." + line
		}

		out = append(out, line)

		if line == "" {
			inBody = true
		}
	}

	return append(out, ".")
}

func (s *testServer) commit() {
	var remaining []testMessage

	for i, msg := range s.messages {
		if !s.deleted[i+1] {
			remaining = append(remaining, msg)
		}
	}

	s.messages = remaining
	s.deleted = make(map[int]bool)
}

func (s *testServer) setSilent(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.silent[cmd] = true
}

func testLiteral(uid, subject string, body ...string) testMessage {
	return testMessage{
		uid: uid,
		literal: "From: Alice <alice@example.com>\r\n" +
			"To: bob@example.com\r\n" +
			"Subject: " + subject + "\r\n" +
			"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
			"Content-Type: text/plain; charset=us-ascii\r\n" +
			"\r\n" +
			strings.Join(body, "\r\n") + "\r\n",
	}
}
