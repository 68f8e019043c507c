package analyzer

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// errStopWalk ends a walk early without reporting an error.
var errStopWalk = errors.New("stop walk")

// entry is one directory or file seen during a walk.
type entry struct {
	rel     string // slash-separated, relative to the root; "" for the root
	name    string
	depth   int
	isDir   bool
	size    int64
	ignored bool // file matched by a .gitignore pattern
}

type visitFunc func(e entry) error

// walker traverses a tree depth-first: a directory, then its files in
// lexical order, then its sub-directories in lexical order. Symlinks are
// never followed, ignored directory names and .gitignore'd directories are
// never entered.
type walker struct {
	fs       billy.Filesystem
	rootName string
	// dirErr receives directories that could not be listed.
	dirErr func(rel string, err error)
}

func newWalker(root string) *walker {
	return &walker{fs: osfs.New(root), rootName: path.Base(strings.ReplaceAll(root, "\\", "/"))}
}

// walk calls visit for every entry. visit may return errStopWalk.
func (w *walker) walk(visit visitFunc) error {
	err := w.walkDir("", w.rootName, 0, nil, visit)
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

func (w *walker) walkDir(rel, name string, depth int, patterns []gitignore.Pattern, visit visitFunc) error {
	if err := visit(entry{rel: rel, name: name, depth: depth, isDir: true}); err != nil {
		return err
	}

	dirPath := rel
	if dirPath == "" {
		dirPath = "."
	}
	infos, err := w.fs.ReadDir(dirPath)
	if err != nil {
		if w.dirErr != nil {
			w.dirErr(rel, err)
		}
		return nil
	}

	patterns = append(patterns[:len(patterns):len(patterns)], w.readIgnore(rel)...)
	matcher := gitignore.NewMatcher(patterns)

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	var dirs []os.FileInfo
	for _, info := range infos {
		childRel := joinRel(rel, info.Name())
		parts := strings.Split(childRel, "/")
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			continue
		case info.IsDir():
			if IgnoredDirs[info.Name()] || matcher.Match(parts, true) {
				continue
			}
			dirs = append(dirs, info)
		case info.Mode().IsRegular():
			e := entry{
				rel:     childRel,
				name:    info.Name(),
				depth:   depth + 1,
				size:    info.Size(),
				ignored: matcher.Match(parts, false),
			}
			if err := visit(e); err != nil {
				return err
			}
		}
	}

	for _, d := range dirs {
		if err := w.walkDir(joinRel(rel, d.Name()), d.Name(), depth+1, patterns, visit); err != nil {
			return err
		}
	}
	return nil
}

// readIgnore parses the .gitignore of a directory, if any.
func (w *walker) readIgnore(rel string) []gitignore.Pattern {
	f, err := w.fs.Open(joinRel(rel, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var domain []string
	if rel != "" {
		domain = strings.Split(rel, "/")
	}
	var out []gitignore.Pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, gitignore.ParsePattern(line, domain))
	}
	return out
}

// readFile reads a file of the walked tree.
func (w *walker) readFile(rel string) ([]byte, error) {
	f, err := w.fs.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func extOf(name string) string {
	return strings.ToLower(path.Ext(name))
}
