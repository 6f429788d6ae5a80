package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/cookiejar"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vango-dev/authfront/internal/config"
	"github.com/vango-dev/authfront/pkg/auth"
	"github.com/vango-dev/authfront/pkg/authstore"
	"github.com/vango-dev/authfront/pkg/backend"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive account shell against the backend",
		Long: `Start an interactive shell that keeps one backend session for the
life of the process. Type "help" for the list of commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			jar, err := cookiejar.New(nil)
			if err != nil {
				return err
			}
			client, err := backend.New(cfg.APIURL, backend.WithCookieJar(jar))
			if err != nil {
				return err
			}
			store := authstore.New(client, authstore.Flags{
				EmailVerificationRequired: cfg.EmailVerificationRequired,
				LoginOnRegistration:       cfg.LoginOnRegistration,
			})

			sh := newShell(store, client, cmd.InOrStdin(), cmd.OutOrStdout())
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return sh.run(ctx)
		},
	}
}

// protectedFetcher is the one backend call the shell makes outside the store.
type protectedFetcher interface {
	Protected(ctx context.Context) (*auth.ProtectedDetail, error)
}

type shell struct {
	store     *authstore.Store
	protected protectedFetcher
	in        *bufio.Reader
	out       io.Writer
	stdinFd   int
}

func newShell(store *authstore.Store, protected protectedFetcher, in io.Reader, out io.Writer) *shell {
	fd := -1
	if f, ok := in.(*os.File); ok {
		fd = int(f.Fd())
	}
	return &shell{
		store:     store,
		protected: protected,
		in:        bufio.NewReader(in),
		out:       out,
		stdinFd:   fd,
	}
}

const shellHelp = `Commands:
  whoami                   refresh and show the current user
  state                    show the session state
  login [email]            sign in
  signup [email]           create an account
  logout                   sign out
  resend [email]           resend the verification email
  verify <key>             confirm an email address
  forgot [email]           request a password reset
  reset <uid> <token>      set a new password from a reset link
  protected                fetch the protected resource
  clear                    clear the last error
  help                     show this help
  exit | quit              leave the shell`

// run reads commands until EOF or exit. Command failures are reported and
// never end the loop.
func (s *shell) run(ctx context.Context) error {
	s.store.FetchUser(ctx)
	fmt.Fprintln(s.out, `authfront shell. Type "help" for commands.`)

	for {
		fmt.Fprintf(s.out, "authfront (%s)> ", s.status())
		line, err := s.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(s.out, "Bye!")
			return nil
		}
		s.exec(ctx, args[0], args[1:])
	}
}

func (s *shell) status() string {
	if user := s.store.State().User; user != nil {
		return user.Email
	}
	return "anonymous"
}

func (s *shell) exec(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, shellHelp)

	case "whoami":
		if user := s.store.FetchUser(ctx); user != nil {
			s.printUser(user)
		} else {
			s.report(nil, "Not logged in.")
		}

	case "state":
		st := s.store.State()
		fmt.Fprintf(s.out, "authenticated: %t\nloading:       %t\n", st.IsAuthenticated(), st.IsLoading)
		if st.User != nil {
			fmt.Fprintf(s.out, "user:          %s\n", st.User.Email)
		}
		if st.Error != "" {
			fmt.Fprintf(s.out, "error:         %s\n", st.Error)
		}

	case "login":
		email := s.argOrPrompt(args, 0, "Email")
		password := s.secret("Password")
		err := s.store.Login(ctx, email, password)
		var unverified *authstore.EmailVerificationError
		if errors.As(err, &unverified) {
			s.report(err, "")
			fmt.Fprintf(s.out, "Run \"resend %s\" to get a new verification email.\n", unverified.Email)
			return
		}
		if err == nil && !s.store.State().IsAuthenticated() {
			// The backend accepted the credentials but the session did not stick.
			msg := s.store.State().Error
			if msg == "" {
				msg = "Login failed."
			}
			fmt.Fprintf(s.out, "Error: %s\n", msg)
			return
		}
		s.report(err, "Welcome back! You have successfully logged in.")

	case "signup":
		email := s.argOrPrompt(args, 0, "Email")
		password1 := s.secret("Password")
		password2 := s.secret("Confirm password")
		if password1 != password2 {
			fmt.Fprintln(s.out, "Passwords do not match.")
			return
		}
		res, err := s.store.Signup(ctx, email, password1, password2)
		switch {
		case err != nil:
			s.report(err, "")
		case res.RequiresVerification:
			fmt.Fprintf(s.out, "Account created. Check %s for a verification link.\n", res.Email)
		case s.store.State().IsAuthenticated():
			fmt.Fprintln(s.out, "Account created successfully! Welcome to the app.")
		default:
			fmt.Fprintln(s.out, "Account created. You can now log in.")
		}

	case "logout":
		s.store.Logout(ctx)
		if st := s.store.State(); st.Error != "" {
			fmt.Fprintf(s.out, "Logged out locally: %s\n", st.Error)
			return
		}
		fmt.Fprintln(s.out, "Logged out.")

	case "resend":
		email := s.argOrPrompt(args, 0, "Email")
		s.report(s.store.ResendVerificationEmail(ctx, email), "Verification email sent to "+email+".")

	case "verify":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "usage: verify <key>")
			return
		}
		err := s.store.VerifyEmail(ctx, args[0])
		var opErr *authstore.OpError
		if errors.As(err, &opErr) && opErr.AlreadyConfirmed {
			fmt.Fprintln(s.out, "This email address has already been verified.")
			return
		}
		s.report(err, "Your email has been successfully verified!")

	case "forgot":
		email := s.argOrPrompt(args, 0, "Email")
		s.report(s.store.ForgotPassword(ctx, email), "If an account with that email exists, a password reset link has been sent.")

	case "reset":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "usage: reset <uid> <token>")
			return
		}
		password1 := s.secret("New password")
		password2 := s.secret("Confirm new password")
		if password1 != password2 {
			fmt.Fprintln(s.out, "Passwords do not match.")
			return
		}
		s.report(s.store.ResetPasswordConfirm(ctx, args[0], args[1], password1, password2), "Password has been reset. You can now log in.")

	case "protected":
		detail, err := s.protected.Protected(ctx)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %s\n", auth.Classify(err).Message("Failed to load protected data."))
			return
		}
		fmt.Fprintln(s.out, detail.Message)
		if detail.User != nil {
			s.printUser(detail.User)
		}

	case "clear":
		s.store.ClearError()

	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", cmd)
	}
}

// report prints the store error for a failed operation, or ok.
func (s *shell) report(err error, ok string) {
	if err == nil {
		if ok != "" {
			fmt.Fprintln(s.out, ok)
		}
		return
	}
	msg := s.store.State().Error
	if msg == "" {
		msg = err.Error()
	}
	fmt.Fprintf(s.out, "Error: %s\n", msg)
}

func (s *shell) printUser(u *auth.User) {
	fmt.Fprintf(s.out, "id:       %s\n", u.ID)
	fmt.Fprintf(s.out, "email:    %s\n", u.Email)
	if name := u.DisplayName(); name != u.Email {
		fmt.Fprintf(s.out, "name:     %s\n", name)
	}
	fmt.Fprintf(s.out, "verified: %t\n", u.Verified())
}

func (s *shell) argOrPrompt(args []string, i int, prompt string) string {
	if i < len(args) {
		return args[i]
	}
	fmt.Fprintf(s.out, "%s: ", prompt)
	line, _ := s.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// secret reads a password without echo when stdin is a terminal.
func (s *shell) secret(prompt string) string {
	fmt.Fprintf(s.out, "%s: ", prompt)
	if s.stdinFd >= 0 && isTerminal(s.stdinFd) {
		pw, err := readPassword(s.stdinFd)
		fmt.Fprintln(s.out)
		if err != nil {
			return ""
		}
		return string(pw)
	}
	line, _ := s.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
