package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
	"github.com/custodia-labs/docuchat/internal/extractors/pdf"
	"github.com/custodia-labs/docuchat/internal/logger"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc", "documents"},
	Short:   "Manage uploaded documents",
	Long:    `Upload, list, view and delete documents used to ground chat answers.`,
}

var documentUploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload and index files",
	Long: `Extracts text from each file, stores it and indexes its chunks.

Files with an unsupported type are stored without content. Files whose
extracted text matches an existing document are rejected as duplicates.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocumentUpload,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print extracted document text",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentDeleteCmd = &cobra.Command{
	Use:     "delete [doc-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a document and its indexed chunks",
	Args:    cobra.ExactArgs(1),
	RunE:    runDocumentDelete,
}

var documentWatchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Upload files as they appear in a directory",
	Long: `Watches a directory and uploads files when they are created or written.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentWatch,
}

var (
	uploadMediaType string
	watchExisting   bool
	watchDebounce   time.Duration
)

func init() {
	documentUploadCmd.Flags().StringVarP(&uploadMediaType, "type", "t", "",
		"media type of the files (detected when empty)")
	documentWatchCmd.Flags().BoolVar(&watchExisting, "existing", false,
		"upload files already in the directory first")
	documentWatchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond,
		"quiet period before a changed file is uploaded")

	documentCmd.AddCommand(documentUploadCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentWatchCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentUpload(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	var errs []error
	for _, path := range args {
		if err := uploadFile(cmd, path, uploadMediaType); err != nil {
			cmd.PrintErrf("Failed to upload %s: %v\n", path, err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func uploadFile(cmd *cobra.Command, path, mediaType string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	result, err := documentService.Upload(cmd.Context(), driving.UploadRequest{
		Filename:  filepath.Base(path),
		MediaType: mediaType,
		Content:   content,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Uploaded %s as %s\n", filepath.Base(path), result.DocumentID)
	if !result.Extracted {
		cmd.Println("  No text extracted; stored without content")
		if strings.EqualFold(filepath.Ext(path), ".pdf") && pdf.CheckAvailable() != nil {
			cmd.Println(pdf.InstallInstructions())
		}
		return nil
	}
	cmd.Printf("  Chunks: %d\n", result.ChunkCount)
	printOutcome(cmd, "indexing", result.Indexing)
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents uploaded.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    File: %s (%s, %s)\n", docs[i].Filename, docs[i].MediaType, formatSize(docs[i].Size))
		cmd.Printf("    Uploaded: %s\n", docs[i].CreatedAt.Local().Format(timeFormat))
		if !docs[i].Extracted {
			cmd.Println("    No extracted text")
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  File:        %s\n", doc.Filename)
	cmd.Printf("  Type:        %s\n", doc.MediaType)
	cmd.Printf("  Size:        %s\n", formatSize(doc.Size))
	cmd.Printf("  Uploaded:    %s\n", doc.CreatedAt.Local().Format(timeFormat))
	if doc.Extracted {
		cmd.Printf("  Characters:  %d\n", len([]rune(doc.Content)))
		cmd.Printf("  Fingerprint: %s\n", doc.Fingerprint)
	} else {
		cmd.Println("  Content:     (none extracted)")
	}
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if !doc.HasContent() {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrExtractionEmpty)
	}

	fmt.Fprintln(cmd.OutOrStdout(), doc.Content)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	outcome, err := documentService.Delete(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document %s\n", args[0])
	printOutcome(cmd, "index cleanup", outcome)
	return nil
}

func runDocumentWatch(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	upload := func(path string) {
		if err := uploadFile(cmd, path, ""); err != nil {
			if errors.Is(err, domain.ErrDuplicateContent) {
				cmd.Printf("Skipped %s: duplicate content\n", filepath.Base(path))
				return
			}
			cmd.PrintErrf("Failed to upload %s: %v\n", path, err)
		}
	}

	if watchExisting {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading directory: %w", err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && !isHidden(entry.Name()) {
				upload(filepath.Join(dir, entry.Name()))
			}
		}
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	return watchDirectory(ctx, dir, watchDebounce, upload)
}

// watchDirectory calls upload for each regular, non-hidden file created or
// written in dir, once the file has been quiet for debounce. It returns when
// ctx is cancelled.
func watchDirectory(ctx context.Context, dir string, debounce time.Duration, upload func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	d := newDebouncer(debounce, func(path string) {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		upload(path)
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isHidden(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				logger.Debug("watch: %s %s", event.Op, event.Name)
				d.schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// debouncer runs fn for a path once no new event has arrived for delay.
type debouncer struct {
	delay time.Duration
	fn    func(path string)

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration, fn func(path string)) *debouncer {
	return &debouncer{delay: delay, fn: fn, pending: make(map[string]*time.Timer)}
}

// schedule (re)starts the timer for path.
func (d *debouncer) schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[path]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.fire(path, timer)
	})
	d.pending[path] = timer
}

// fire runs fn unless timer was replaced by a later schedule call, which
// happens when the timer expires while schedule holds the lock.
func (d *debouncer) fire(path string, timer *time.Timer) {
	d.mu.Lock()
	if d.pending[path] != timer {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	d.fn(path)
}

// stop cancels pending timers and waits for running callbacks.
func (d *debouncer) stop() {
	d.mu.Lock()
	for path, t := range d.pending {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGT"[exp])
}
