package main

import (
	"context"
	"errors"
	"flag"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/carbocation/bcf"
	"github.com/carbocation/pfx"
	log "github.com/sirupsen/logrus"
)

func main() {
	path := flag.String("in", "", "Filename (or gs:// URL) of the BCFP stream to trim")
	outPath := flag.String("out", "", "Filename of the trimmed BCFP stream to write")
	compression := flag.String("compression", "zstd", "Output compression: none, zstd, or lz4")
	workers := flag.Int("workers", runtime.NumCPU(), "Number of records trimmed concurrently")
	batchSize := flag.Int("batch", 1000, "Number of records read before trimming them in parallel")
	onCorrupt := flag.String("on-corrupt", "warn", "What to do with a malformed record: skip (drop it), warn (log and keep it untrimmed), or halt")
	verbose := flag.Bool("verbose", false, "Log every trimmed record")
	flag.Parse()

	if *path == "" || *outPath == "" {
		flag.PrintDefaults()
		log.Fatalln("Both -in and -out are required")
	}
	if *batchSize < 1 {
		log.Fatalln("-batch must be positive")
	}
	switch *onCorrupt {
	case "skip", "warn", "halt":
	default:
		log.Fatalf("-on-corrupt %q is not one of skip, warn, halt\n", *onCorrupt)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	*path = expandHome(*path)
	*outPath = expandHome(*outPath)

	comp, err := bcf.ParseCompression(*compression)
	if err != nil {
		log.Fatalln(err)
	}

	ctx := context.Background()

	log.Println("Opening:", *path)
	b, err := bcf.OpenContext(ctx, *path)
	if err != nil {
		log.Fatalln(err)
	}
	defer b.Close()

	w, err := bcf.Create(*outPath, b.Header, comp)
	if err != nil {
		log.Fatalln(err)
	}

	var nRecords, nTrimmed, nAllelesRemoved, nSkipped int

	flush := func(batch []*bcf.Record) {
		results, err := bcf.TrimBatch(ctx, b.Header, batch, *workers)
		if err != nil {
			// Unsupported field shapes are fatal regardless of -on-corrupt
			log.Fatalln(err)
		}

		for i, r := range batch {
			res := results[i]
			if res.Err != nil {
				switch *onCorrupt {
				case "halt":
					log.Fatalln(res.Err)
				case "skip":
					nSkipped++
					continue
				case "warn":
					log.WithField("site", r.Site(b.Header)).Warnln(res.Err)
				}
			}
			if res.Removed > 0 {
				nTrimmed++
				nAllelesRemoved += res.Removed
				log.WithFields(log.Fields{
					"site":    r.Site(b.Header),
					"removed": res.Removed,
				}).Debugln("Trimmed")
			}
			if err := w.Write(r); err != nil {
				log.Fatalln(err)
			}
		}
	}

	rr := b.NewRecordReader()
	batch := make([]*bcf.Record, 0, *batchSize)
	for r := rr.Read(); r != nil; r = rr.Read() {
		nRecords++
		batch = append(batch, r)
		if len(batch) == *batchSize {
			flush(batch)
			batch = batch[:0]
			log.Println("Processed", nRecords, "records")
		}
	}
	if err := rr.Error(); err != nil {
		if !errors.Is(err, bcf.ErrCorrupt) || *onCorrupt == "halt" {
			log.Fatalln(err)
		}
		// The stream cannot be resynchronized after a truncated record
		log.Warnln("Stopped reading early:", err)
	}
	flush(batch)

	if err := w.Close(); err != nil {
		log.Fatalln(err)
	}

	log.WithFields(log.Fields{
		"records":         nRecords,
		"trimmed":         nTrimmed,
		"alleles_removed": nAllelesRemoved,
		"skipped":         nSkipped,
	}).Infoln("Done")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	return filepath.Join(usr.HomeDir, path[2:])
}
