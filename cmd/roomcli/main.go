// Command roomcli is a terminal client for the collaboration service:
// room management, file upload and a live chat/canvas session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"collabboard/internal/board"
	"collabboard/internal/client"
	"collabboard/internal/fileapi"
	"collabboard/internal/identity"
	"collabboard/internal/protocol"
	"collabboard/internal/roomapi"
)

func main() {
	var (
		apiURL  = flag.String("api", envOr("API_URL", "http://localhost:8000/api/v1"), "API base URL")
		wsURL   = flag.String("ws", envOr("WS_URL", "ws://localhost:8000"), "WebSocket base URL")
		userID  = flag.String("user", "", "participant id")
		name    = flag.String("name", "", "display name (defaults to the participant id)")
		idToken = flag.String("google-token", "", "Google ID token to exchange for credentials")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()

	id, err := resolveIdentity(ctx, *apiURL, *userID, *name, *idToken)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	rooms := roomapi.New(*apiURL, roomapi.WithToken(id.Token))

	switch cmd := flag.Arg(0); cmd {
	case "list":
		runList(ctx, rooms)
	case "create":
		requireArgs(2, "create <name>")
		runCreate(ctx, rooms, flag.Arg(1))
	case "delete":
		requireArgs(2, "delete <roomId>")
		runDelete(ctx, rooms, flag.Arg(1))
	case "upload":
		requireArgs(3, "upload <roomId> <path>")
		runUpload(ctx, *apiURL, id, flag.Arg(1), flag.Arg(2))
	case "join":
		requireArgs(2, "join <roomId>")
		runJoin(*wsURL, *apiURL, id, flag.Arg(1))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: roomcli [flags] <command>

Commands:
  list                  list rooms
  create <name>         create a room
  delete <roomId>       delete a room
  upload <roomId> <path>  upload a file to a room
  join <roomId>         join a room interactively

Flags:
`)
	flag.PrintDefaults()
}

func requireArgs(n int, form string) {
	if flag.NArg() < n {
		fmt.Fprintf(os.Stderr, "usage: roomcli %s\n", form)
		os.Exit(2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func resolveIdentity(ctx context.Context, apiURL, userID, name, idToken string) (*identity.Identity, error) {
	if idToken != "" {
		return identity.NewExchanger(apiURL, idToken).Identity(ctx)
	}
	if userID == "" {
		return nil, fmt.Errorf("either -user or -google-token is required")
	}
	return identity.Static{UserID: userID, Username: name}.Identity(ctx)
}

func runList(ctx context.Context, rooms *roomapi.Client) {
	list, err := rooms.List(ctx)
	if err != nil {
		log.Fatalf("list rooms: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("no rooms")
		return
	}
	for _, r := range list {
		fmt.Printf("%s  %s  (created %s)\n", r.ID, r.Name, r.CreatedAt.Format(time.RFC3339))
	}
}

func runCreate(ctx context.Context, rooms *roomapi.Client, name string) {
	room, err := rooms.Create(ctx, name)
	if err != nil {
		log.Fatalf("create room: %v", err)
	}
	fmt.Printf("created %s (%s)\n", room.Name, room.ID)
}

func runDelete(ctx context.Context, rooms *roomapi.Client, id string) {
	if err := rooms.Delete(ctx, id); err != nil {
		log.Fatalf("delete room: %v", err)
	}
	fmt.Println("deleted", id)
}

func runUpload(ctx context.Context, apiURL string, id *identity.Identity, roomID, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	files := fileapi.New(apiURL)
	result, err := files.Upload(ctx, roomID, id.UserID, filepath.Base(path), contentType, f)
	if err != nil {
		log.Fatalf("upload: %v", err)
	}
	fmt.Printf("uploaded %s (%d bytes)\n%s\n", result.Filename, result.Size, result.DownloadURL)
}

// echoHandler prints events as they arrive and keeps the dispatcher's
// roster and stroke log current.
type echoHandler struct {
	d *client.Dispatcher
}

func (h *echoHandler) Dispatch(msg *protocol.Message) {
	h.d.Dispatch(msg)

	switch msg.Kind {
	case protocol.KindRoomJoined:
		fmt.Println("*", msg.Welcome)
	case protocol.KindChatMessage:
		if msg.Chat != nil {
			if msg.Chat.FileURL != "" {
				fmt.Printf("<%s> %s [%s: %s]\n", msg.Chat.Username, msg.Chat.Content, msg.Chat.FileName, msg.Chat.FileURL)
			} else {
				fmt.Printf("<%s> %s\n", msg.Chat.Username, msg.Chat.Content)
			}
		}
	case protocol.KindUserJoined:
		fmt.Printf("* %s joined\n", msg.User.Username)
	case protocol.KindUserLeft:
		fmt.Printf("* %s left\n", msg.User.UserID)
	case protocol.KindStrokeAdded:
		if msg.Stroke != nil {
			fmt.Printf("* %s drew a stroke (%d points)\n", msg.Stroke.Username, len(msg.Stroke.Points))
		}
	case protocol.KindCanvasCleared:
		who := "someone"
		if msg.ClearedBy != nil {
			who = msg.ClearedBy.Name
		}
		fmt.Printf("* %s cleared the canvas\n", who)
	}
}

func runJoin(wsURL, apiURL string, id *identity.Identity, roomID string) {
	dispatcher := client.NewDispatcher()
	handler := &echoHandler{d: dispatcher}

	session := client.NewSession(wsURL, handler, client.WithStateFunc(func(st client.State) {
		fmt.Println("* connection:", st)
	}))

	session.Connect(roomID, id.UserID)
	defer session.Disconnect()

	files := fileapi.New(apiURL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	files.StartMaintenance(ctx, id.UserID, 5*time.Minute, time.Minute)

	fmt.Println("commands: /who /board /draw x,y x,y ... /clear /upload <path> /quit; anything else is chat")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			session.Send(protocol.NewChatText(line))
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit":
			return
		case "/who":
			for _, p := range dispatcher.Roster.List() {
				fmt.Printf("  %s (%s)\n", p.Username, p.UserID)
			}
		case "/board":
			fmt.Printf("  %d strokes\n", dispatcher.Strokes.Len())
		case "/draw":
			stroke, err := parseStroke(rest, id)
			if err != nil {
				fmt.Println("  ", err)
				continue
			}
			dispatcher.Strokes.Append(stroke)
			session.Send(protocol.NewStrokeAdded(stroke))
		case "/clear":
			dispatcher.Strokes.Clear()
			session.Send(protocol.NewCanvasCleared(id.UserID, id.Username))
		case "/upload":
			if rest == "" {
				fmt.Println("  usage: /upload <path>")
				continue
			}
			uploadAndShare(ctx, files, session, id, roomID, rest)
		default:
			fmt.Println("  unknown command", cmd)
		}
	}
}

// parseStroke turns "x,y x,y ..." into a stroke captured at full
// pressure with the default pen.
func parseStroke(spec string, id *identity.Identity) (protocol.Stroke, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return protocol.Stroke{}, fmt.Errorf("usage: /draw x,y x,y ...")
	}

	capture := board.NewCapture(board.Viewport{})
	for i, field := range fields {
		xs, ys, ok := strings.Cut(field, ",")
		if !ok {
			return protocol.Stroke{}, fmt.Errorf("bad point %q", field)
		}
		x, errX := strconv.ParseFloat(xs, 64)
		y, errY := strconv.ParseFloat(ys, 64)
		if errX != nil || errY != nil {
			return protocol.Stroke{}, fmt.Errorf("bad point %q", field)
		}
		if i == 0 {
			capture.PointerDown(x, y)
		} else {
			capture.PointerMove(x, y)
		}
	}

	pen := board.Tool{Type: board.ToolPen, Color: "#1d4ed8", Size: 3}
	stroke, ok := capture.PointerUp(pen, id.UserID, id.Username)
	if !ok {
		return protocol.Stroke{}, fmt.Errorf("empty stroke")
	}
	return stroke, nil
}

func uploadAndShare(ctx context.Context, files *fileapi.Client, session *client.Session, id *identity.Identity, roomID, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Println("  open:", err)
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	result, err := files.Upload(ctx, roomID, id.UserID, filepath.Base(path), contentType, f)
	if err != nil {
		fmt.Println("  upload:", err)
		return
	}

	session.Send(protocol.NewChatFile(
		fmt.Sprintf("shared %s", result.Filename),
		result.DownloadURL,
		result.Filename,
		result.ContentType,
		id.Username,
	))
	fmt.Println("  shared", result.Filename)
}
