// Command paperback compiles a library of text files into a compressed
// blob, and dumps compiled blobs back to text for verification.
//
// Usage:
//
//	paperback build -manifest books.yaml [-o books.bin]
//	paperback dump -blob books.bin [book [chapter [block]]]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kstone/paperback"
	"github.com/kstone/paperback/reader"
)

// blockLimit caps the sanitized text per leaf; longer chapters split into
// numbered blocks so the device never has to hold a whole long chapter in
// its decode buffer.
const blockLimit = 10000

type manifest struct {
	Output       string   `yaml:"output"`
	MaxTokens    int      `yaml:"max_tokens"`
	ForcedTokens []string `yaml:"forced_tokens"`
	Books        []book   `yaml:"books"`
}

type book struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Chapters    []chapter `yaml:"chapters"`
}

type chapter struct {
	Title string `yaml:"title"`
	File  string `yaml:"file"`
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "dump":
		runDump(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: paperback build -manifest <file> [-o <file>]")
	fmt.Fprintln(os.Stderr, "       paperback dump -blob <file> [path...]")
	os.Exit(2)
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	manifestPath := fs.String("manifest", "books.yaml", "build manifest")
	out := fs.String("o", "", "output path (overrides the manifest)")
	fs.Parse(args)

	raw, err := os.ReadFile(*manifestPath)
	if err != nil {
		log.Fatal(err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		log.Fatalf("parsing %s: %v", *manifestPath, err)
	}
	if *out != "" {
		m.Output = *out
	}
	if m.Output == "" {
		m.Output = "books.bin"
	}

	san := &paperback.Sanitizer{Fallback: '_', Loud: true}
	baseDir := filepath.Dir(*manifestPath)

	var library paperback.Collection
	for _, b := range m.Books {
		var chapters paperback.Collection
		if b.Description != "" {
			chapters = append(chapters, paperback.Entry{
				Name:  "= Description =",
				Child: paperback.RawLeaf(san.Sanitize(b.Description)),
			})
		}
		for _, ch := range b.Chapters {
			text, err := os.ReadFile(filepath.Join(baseDir, ch.File))
			if err != nil {
				log.Fatalf("book %q: %v", b.Title, err)
			}
			chapters = append(chapters, paperback.Entry{
				Name:  san.Sanitize(ch.Title),
				Child: chapterNode(san.Sanitize(string(text))),
			})
		}
		library = append(library, paperback.Entry{Name: san.Sanitize(b.Title), Child: chapters})
	}
	if unk := san.Unknown(); len(unk) > 0 {
		log.Printf("unknown characters: %q", string(unk))
	}

	opts := []paperback.Option{
		paperback.WithForcedTokens(m.ForcedTokens...),
		paperback.WithProgress(func(seqLen, ruleCount int) {
			fmt.Fprintf(os.Stderr, "\rcompressed sequence: %d symbols, rules: %d   ", seqLen, ruleCount)
		}),
	}
	if m.MaxTokens > 0 {
		opts = append(opts, paperback.WithMaxTokens(m.MaxTokens))
	}

	grammar, compressed, err := paperback.Compress(library, opts...)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	blob := &paperback.Blob{
		Meta:    []byte("generated on " + time.Now().Format("2006-01-02 15:04:05")),
		Grammar: grammar,
		Root:    compressed.(paperback.Collection),
	}
	data, err := blob.Bytes()
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(m.Output, data, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("%s: %d bytes", m.Output, len(data))
}

// chapterNode turns sanitized chapter text into a leaf, or into a
// collection of "i/n"-named blocks when the chapter is longer than
// blockLimit. Splits happen at paragraph boundaries only.
func chapterNode(text string) paperback.Node {
	if len(text) <= blockLimit {
		return paperback.RawLeaf(text)
	}
	paras := strings.Split(text, "\n\n")
	var blocks []string
	cur := ""
	for _, p := range paras {
		switch {
		case cur == "":
			cur = p
		case len(cur)+2+len(p) <= blockLimit:
			cur += "\n\n" + p
		default:
			blocks = append(blocks, cur)
			cur = p
		}
	}
	if cur != "" {
		blocks = append(blocks, cur)
	}
	if len(blocks) == 1 {
		return paperback.RawLeaf(blocks[0])
	}
	col := make(paperback.Collection, len(blocks))
	for i, b := range blocks {
		col[i] = paperback.Entry{
			Name:  fmt.Sprintf("%d/%d", i+1, len(blocks)),
			Child: paperback.RawLeaf(b),
		}
	}
	return col
}

func runDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	blobPath := fs.String("blob", "books.bin", "compiled blob")
	fs.Parse(args)

	f, err := os.Open(*blobPath)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	rd, err := reader.Open(f)
	if err != nil {
		log.Fatal(err)
	}
	if len(fs.Args()) == 0 {
		fmt.Printf("%s\n\n", rd.Meta())
	}
	dump(rd, fs.Args(), 0)
}

func dump(rd *reader.Reader, path []string, depth int) {
	leaf, err := rd.IsLeaf(path...)
	if err != nil {
		log.Fatal(err)
	}
	if leaf {
		paras, err := rd.Paragraphs(path...)
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range paras {
			fmt.Println(p)
		}
		return
	}
	names, err := rd.Entries(path...)
	if err != nil {
		log.Fatal(err)
	}
	for _, name := range names {
		fmt.Printf("%s %s\n", strings.Repeat("#", depth+1), name)
		child := append(append([]string(nil), path...), name)
		dump(rd, child, depth+1)
		fmt.Println()
	}
}
