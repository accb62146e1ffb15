package dots

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PackageList maps a section name to the apt packages listed under it.
type PackageList map[string][]string

// ParsePackageList reads `[section]` headers, each followed by one package
// per line. Blank lines and lines before the first header are ignored.
func ParsePackageList(r io.Reader) (PackageList, error) {
	packages := make(PackageList)
	section := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			section = line[1 : len(line)-1]
			packages[section] = []string{}
		case section != "":
			packages[section] = append(packages[section], line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read package list: %w", err)
	}
	return packages, nil
}

func LoadPackageList(path string) (PackageList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("package list not found at %s: %w", path, err)
	}
	defer f.Close()
	return ParsePackageList(f)
}

// Section returns the packages of name or an error naming the missing section.
func (p PackageList) Section(name string) ([]string, error) {
	pkgs, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("no '%s' section found in package list", name)
	}
	return pkgs, nil
}
