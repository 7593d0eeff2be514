package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cleanmatch_client/client/common/gateway"
	directorydomain "cleanmatch_client/client/directory/domain"
	reservationdomain "cleanmatch_client/client/reservation/domain"
	sessiondomain "cleanmatch_client/client/session/domain"
	sessionsvc "cleanmatch_client/client/session/service"
)

const replPrompt = "cleanmatch> "

// RunREPL is the terminal front end: it reads commands from stdin and
// renders each store's state after the operation settles.
func (a *App) RunREPL(ctx context.Context) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	a.Session.CheckAuth(ctx)
	a.printSession()
	fmt.Print(replPrompt)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := a.handleLine(ctx, strings.TrimSpace(line)); quit {
				return
			}
			fmt.Print(replPrompt)
		}
	}
}

func (a *App) handleLine(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	args := strings.Fields(line)
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		printHelp()
	case "login":
		a.cmdLogin(ctx, rest)
	case "signup":
		a.cmdSignup(ctx, rest)
	case "logout":
		a.Session.Logout()
		fmt.Println("logged out")
	case "whoami":
		a.printSession()
	case "status":
		fmt.Printf("realtime: %s\n", a.Realtime.State())
	case "cleaners":
		a.cmdCleaners(ctx)
	case "add-cleaner":
		a.cmdAddCleaner(ctx, rest)
	case "rm-cleaner":
		a.cmdRemoveCleaner(ctx, rest)
	case "availability":
		a.cmdAvailability(ctx, rest)
	case "book":
		a.cmdBook(ctx, rest)
	case "reservations":
		a.cmdReservations(ctx)
	case "decide":
		a.cmdDecide(ctx, rest)
	case "cancel":
		a.cmdCancel(ctx, rest)
	case "threads":
		a.cmdThreads(ctx)
	case "history":
		a.cmdHistory(ctx, rest)
	case "send":
		a.cmdSend(ctx, rest)
	case "read":
		a.cmdRead(ctx, rest)
	default:
		fmt.Printf("unknown command %q, try help\n", cmd)
	}
	return false
}

func printHelp() {
	fmt.Println(`commands:
  login <email> <password>
  signup <name> <email> <password> <phone> <location> [avatar.jpg]
  logout | whoami | status
  cleaners | add-cleaner <name> <email> <password> <phone> <location> [avatar.jpg] | rm-cleaner <id>
  availability <cleanerId> | book <cleanerId> <yyyy-mm-dd> <minutes> [notes...]
  reservations | decide <id> accepted|rejected | cancel <id>
  threads | history <peerId> | send <peerId> <text...> | read <messageId>
  quit`)
}

func (a *App) cmdLogin(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: login <email> <password>")
		return
	}
	if err := a.Session.Login(ctx, args[0], args[1]); err != nil {
		fmt.Printf("login failed: %s\n", a.Session.Snapshot().LastError)
		return
	}
	a.printSession()
}

func (a *App) cmdSignup(ctx context.Context, args []string) {
	if len(args) < 5 {
		fmt.Println("usage: signup <name> <email> <password> <phone> <location> [avatar.jpg]")
		return
	}
	input := sessionsvc.SignupInput{
		Name: args[0], Email: args[1], Password: args[2], Phone: args[3], Location: args[4],
	}
	if len(args) > 5 {
		part, err := loadImage(args[5])
		if err != nil {
			fmt.Printf("avatar: %v\n", err)
			return
		}
		input.Avatar = part
	}
	if err := a.Session.Signup(ctx, input); err != nil {
		fmt.Printf("signup failed: %s\n", a.Session.Snapshot().LastError)
		return
	}
	a.printSession()
}

func (a *App) cmdCleaners(ctx context.Context) {
	if err := a.Directory.FetchAll(ctx); err != nil {
		fmt.Printf("error: %s\n", a.Directory.Err())
		return
	}
	for _, cleaner := range a.Directory.Cleaners() {
		fmt.Printf("%s  %-20s %-15s %s\n", cleaner.ID, cleaner.Name, cleaner.Phone, cleaner.Location)
	}
}

func (a *App) cmdAddCleaner(ctx context.Context, args []string) {
	if len(args) < 5 {
		fmt.Println("usage: add-cleaner <name> <email> <password> <phone> <location> [avatar.jpg]")
		return
	}
	var avatar *gateway.ImagePart
	if len(args) > 5 {
		part, err := loadImage(args[5])
		if err != nil {
			fmt.Printf("avatar: %v\n", err)
			return
		}
		avatar = part
	}
	input := directorydomain.CleanerInput{
		Name: args[0], Email: args[1], Password: args[2], Phone: args[3], Location: args[4],
	}
	created, err := a.Directory.Create(ctx, input, avatar)
	if err != nil {
		fmt.Printf("error: %s\n", a.Directory.Err())
		return
	}
	fmt.Printf("created cleaner %s\n", created.ID)
}

func (a *App) cmdRemoveCleaner(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: rm-cleaner <id>")
		return
	}
	if err := a.Directory.Delete(ctx, args[0]); err != nil {
		fmt.Printf("error: %s\n", a.Directory.Err())
		return
	}
	fmt.Println("deleted")
}

func (a *App) cmdAvailability(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: availability <cleanerId>")
		return
	}
	if err := a.Reservations.FetchForCleaner(ctx, args[0]); err != nil {
		fmt.Printf("error: %s\n", a.Reservations.Err())
		return
	}
	for _, day := range a.Reservations.Availability(time.Now()) {
		marker := "free"
		if !day.Available {
			marker = "booked"
		}
		fmt.Printf("%s  %s\n", day.Date, marker)
	}
}

func (a *App) cmdBook(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Println("usage: book <cleanerId> <yyyy-mm-dd> <minutes> [notes...]")
		return
	}
	duration, err := strconv.Atoi(args[2])
	if err != nil || duration <= 0 {
		fmt.Println("minutes must be a positive number")
		return
	}
	input := reservationdomain.CreateInput{
		CleanerID: args[0],
		Date:      args[1],
		Duration:  duration,
		Notes:     strings.Join(args[3:], " "),
	}
	created, err := a.Reservations.Create(ctx, input)
	if err != nil {
		fmt.Printf("error: %s\n", a.Reservations.Err())
		return
	}
	fmt.Printf("booked %s on %s (%s)\n", created.ID, created.Date, created.Status)
}

func (a *App) cmdReservations(ctx context.Context) {
	snap := a.Session.Snapshot()
	var err error
	if snap.Profile != nil && snap.Profile.PrimaryRole() == sessiondomain.RoleCleaner {
		err = a.Reservations.FetchCleanerView(ctx)
	} else {
		err = a.Reservations.FetchClientView(ctx)
	}
	if err != nil {
		fmt.Printf("error: %s\n", a.Reservations.Err())
		return
	}
	for _, reservation := range a.Reservations.Reservations() {
		fmt.Printf("%s  %s  %4dmin  %-8s  cleaner=%s client=%s\n",
			reservation.ID, reservation.Date, reservation.Duration, reservation.Status,
			reservation.Cleaner.ID, reservation.Client.ID)
	}
}

func (a *App) cmdDecide(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: decide <id> accepted|rejected")
		return
	}
	updated, err := a.Reservations.UpdateStatus(ctx, args[0], reservationdomain.Status(args[1]))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("reservation %s is now %s\n", updated.ID, updated.Status)
}

func (a *App) cmdCancel(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: cancel <id>")
		return
	}
	a.Reservations.Delete(ctx, args[0])
	fmt.Println("cancel requested")
}

func (a *App) cmdThreads(ctx context.Context) {
	selfID, ok := a.selfID()
	if !ok {
		return
	}
	if err := a.Chat.FetchThreads(ctx, selfID); err != nil {
		fmt.Printf("error: %s\n", a.Chat.Err())
		return
	}
	for _, thread := range a.Chat.Threads() {
		fmt.Printf("%s  %-20s %s\n", thread.OtherUser.ID, thread.OtherUser.Name, thread.LastMessage)
	}
}

func (a *App) cmdHistory(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: history <peerId>")
		return
	}
	selfID, ok := a.selfID()
	if !ok {
		return
	}
	a.Chat.Clear()
	if err := a.Chat.FetchHistory(ctx, selfID, args[0]); err != nil {
		fmt.Printf("error: %s\n", a.Chat.Err())
		return
	}
	a.printMessages(selfID)
}

func (a *App) cmdSend(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: send <peerId> <text...>")
		return
	}
	selfID, ok := a.selfID()
	if !ok {
		return
	}
	if _, err := a.Chat.SendMessage(ctx, selfID, args[0], strings.Join(args[1:], " ")); err != nil {
		fmt.Printf("error: %s\n", a.Chat.Err())
		return
	}
	a.printMessages(selfID)
}

func (a *App) cmdRead(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: read <messageId>")
		return
	}
	if err := a.Chat.MarkRead(ctx, args[0]); err != nil {
		fmt.Printf("error: %s\n", a.Chat.Err())
	}
}

func (a *App) printMessages(selfID string) {
	for _, msg := range a.Chat.Messages() {
		direction := "<-"
		if msg.SenderID == selfID {
			direction = "->"
		}
		fmt.Printf("%s %s %s\n", msg.Timestamp.Format("15:04"), direction, msg.Content)
	}
}

func (a *App) printSession() {
	snap := a.Session.Snapshot()
	switch {
	case snap.Profile != nil:
		fmt.Printf("logged in as %s (%s, %s)\n", snap.Profile.Name, snap.Profile.ID, snap.Profile.PrimaryRole())
	case snap.LastError != "":
		fmt.Printf("%s: %s\n", snap.Status, snap.LastError)
	default:
		fmt.Printf("session: %s\n", snap.Status)
	}
}

func (a *App) selfID() (string, bool) {
	snap := a.Session.Snapshot()
	if snap.Profile == nil {
		fmt.Println("not logged in")
		return "", false
	}
	return snap.Profile.ID, true
}

func loadImage(path string) (*gateway.ImagePart, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return gateway.NewImagePart(filepath.Base(path), raw)
}
