package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"storylens/internal/card"
	"storylens/internal/client"
	"storylens/internal/models"
	"storylens/internal/upload"
)

var errUsage = errors.New("usage")

const usage = `Usage: storyctl <command> [flags] [args]

Commands:
  list [-skip N] [-limit N]        list stories
  get ID                           show one story
  upload [-type story|poem] FILE   generate a story from a photo
  delete [-y] ID                   delete a story
  play ID                          play narration (Enter pauses/resumes, q stops)
  urls FILENAME                    print image and audio URLs for a filename

Environment: API_BASE_URL, API_TIMEOUT, API_RETRY_COUNT, PLAYER_COMMAND, DISPLAY_TIMEZONE, LOG_LEVEL
`

type app struct {
	api     client.StoryAPI
	loc     *time.Location
	players func() (card.HandleFactory, error)
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	logger  *zap.Logger

	// Период проверки окончания воспроизведения
	pollInterval time.Duration
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.errOut, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return a.list(ctx, rest)
	case "get":
		return a.get(ctx, rest)
	case "upload":
		return a.upload(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "play":
		return a.play(ctx, rest)
	case "urls":
		return a.urls(rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	fmt.Fprintf(a.errOut, "unknown command %q\n\n%s", cmd, usage)
	return errUsage
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// oneArg разбирает флаги и требует ровно один позиционный аргумент.
func (a *app) oneArg(fs *flag.FlagSet, args []string, what string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(a.errOut, "%s: expected %s\n", fs.Name(), what)
		return "", errUsage
	}
	return fs.Arg(0), nil
}

func (a *app) newCard(s models.Story, opts ...card.Option) *card.Card {
	opts = append(opts, card.WithLocation(a.loc), card.WithLogger(a.logger))
	return card.New(s, a.api, opts...)
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := a.flagSet("list")
	skip := fs.Int("skip", 0, "stories to skip")
	limit := fs.Int("limit", client.DefaultListLimit, "maximum number of stories")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	stories, err := a.api.ListStories(ctx, *skip, *limit)
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		fmt.Fprintln(a.out, "No stories yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tAUDIO\tTEXT")
	for _, s := range stories {
		c := a.newCard(s)
		audio := "-"
		if c.HasPlayControl() {
			audio = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID(), c.Badge(), c.FormattedDate(), audio, excerpt(c.Text(), 60))
	}
	return tw.Flush()
}

func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n-1]) + "…"
}

func (a *app) printStory(c *card.Card) {
	fmt.Fprintf(a.out, "%s  %s  %s\n", c.ID(), c.Badge(), c.FormattedDate())
	fmt.Fprintf(a.out, "Image: %s\n", c.ImageURL())
	if c.HasPlayControl() {
		fmt.Fprintf(a.out, "Audio: %s\n", c.AudioURL())
	}
	fmt.Fprintf(a.out, "\n%s\n", c.Text())
}

func (a *app) get(ctx context.Context, args []string) error {
	id, err := a.oneArg(a.flagSet("get"), args, "story ID")
	if err != nil {
		return err
	}
	s, err := a.api.GetStory(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("story %s not found", id)
		}
		return err
	}
	a.printStory(a.newCard(*s))
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	fs := a.flagSet("upload")
	rawType := fs.String("type", string(models.DefaultStoryType), "story or poem")
	path, err := a.oneArg(fs, args, "image file")
	if err != nil {
		return err
	}
	storyType, err := models.ParseStoryType(*rawType)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	view := upload.NewView()
	if err := view.SetStoryType(storyType); err != nil {
		return err
	}
	if err := view.Select([]models.ImageFile{{Name: filepath.Base(path), Data: data}}); err != nil {
		return fmt.Errorf("file can't be used, supports %s: %w", upload.AcceptedFormatsHint, err)
	}
	req, err := view.BeginSubmit()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.errOut, "Generating %s from %s...\n", strings.ToLower(storyType.Label()), req.File.Name)
	s, err := a.api.UploadAndGenerate(ctx, req)
	view.SetLoading(false)
	if err != nil {
		if detail := client.DetailOf(err); detail != "" {
			return errors.New(detail)
		}
		return err
	}
	a.printStory(a.newCard(*s))
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := a.flagSet("delete")
	yes := fs.Bool("y", false, "do not ask for confirmation")
	id, err := a.oneArg(fs, args, "story ID")
	if err != nil {
		return err
	}

	c := a.newCard(models.Story{ID: id}, card.WithDelete(a.api.DeleteStory))
	var confirmer card.Confirmer = card.ConfirmFunc(a.ask)
	if *yes {
		confirmer = card.ConfirmFunc(func(string) (bool, error) { return true, nil })
	}

	deleted, err := c.RequestDelete(ctx, confirmer)
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintln(a.out, "Story deleted successfully")
	}
	return nil
}

// ask задает вопрос да/нет. Конец ввода - отказ.
func (a *app) ask(prompt string) (bool, error) {
	fmt.Fprintf(a.errOut, "%s [y/N]: ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (a *app) play(ctx context.Context, args []string) error {
	id, err := a.oneArg(a.flagSet("play"), args, "story ID")
	if err != nil {
		return err
	}
	s, err := a.api.GetStory(ctx, id)
	if err != nil {
		return err
	}
	factory, err := a.players()
	if err != nil {
		return err
	}

	c := a.newCard(*s, card.WithHandleFactory(factory))
	defer func() { _ = c.Close() }()

	playing, err := c.TogglePlay()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.errOut, "Playing %s (Enter pauses/resumes, q stops)\n", c.AudioURL())

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := a.in.ReadString('\n')
			if line != "" || err == nil {
				lines <- strings.TrimSpace(line)
			}
			if err != nil {
				return
			}
		}
	}()

	interval := a.pollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-c.Errors():
			return err
		case line, ok := <-lines:
			if !ok {
				// Ввод закрыт, просто дослушиваем
				lines = nil
				continue
			}
			if line == "q" {
				return nil
			}
			if playing, err = c.TogglePlay(); err != nil {
				return err
			}
		case <-ticker.C:
			if playing && !c.IsPlaying() {
				// Ошибка плеера попадает в канал вместе со сбросом флага
				select {
				case err := <-c.Errors():
					return err
				default:
				}
				fmt.Fprintln(a.errOut, "Finished")
				return nil
			}
		}
	}
}

func (a *app) urls(args []string) error {
	name, err := a.oneArg(a.flagSet("urls"), args, "filename")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "image: %s\naudio: %s\n", a.api.ImageURL(name), a.api.AudioURL(name))
	return nil
}
