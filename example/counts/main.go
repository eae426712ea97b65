package main

import (
	"context"
	"errors"
	"flag"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/carbocation/bcf"
	"github.com/carbocation/bcf/arrow"
	"github.com/carbocation/pfx"
	log "github.com/sirupsen/logrus"
)

func main() {
	path := flag.String("in", "", "Filename (or gs:// URL) of the BCFP stream to process")
	idxPath := flag.String("index", "", "Filename of the SQLite allele count index to create. Defaults to the input filename with .counts appended")
	arrowPath := flag.String("arrow", "", "Optional: filename of an Arrow IPC file to write the counts to")
	chunkSize := flag.Int("chunk", 10000, "Rows per Arrow record batch")
	from := flag.String("from", "any", "Where to take counts from: info (AN/AC), format (GT), or any (info, falling back to GT)")
	onCorrupt := flag.String("on-corrupt", "warn", "What to do with a malformed record: skip, warn (log and skip), or halt")
	flag.Parse()

	if *path == "" {
		flag.PrintDefaults()
		log.Fatalln("No input stream given")
	}

	var which bcf.Unpack
	switch *from {
	case "info":
		which = bcf.UnpackInfo
	case "format":
		which = bcf.UnpackFormat
	case "any":
		which = bcf.UnpackAll
	default:
		log.Fatalf("-from %q is not one of info, format, any\n", *from)
	}
	switch *onCorrupt {
	case "skip", "warn", "halt":
	default:
		log.Fatalf("-on-corrupt %q is not one of skip, warn, halt\n", *onCorrupt)
	}

	*path = expandHome(*path)
	if *idxPath == "" && !strings.HasPrefix(*path, "gs://") {
		*idxPath = *path + ".counts"
	}
	if *idxPath == "" {
		log.Fatalln("-index is required when reading from Google Storage")
	}
	*idxPath = expandHome(*idxPath)

	log.Println("Opening:", *path)
	b, err := bcf.OpenContext(context.Background(), *path)
	if err != nil {
		log.Fatalln(err)
	}
	defer b.Close()

	idx, err := bcf.CreateCountIndex(*idxPath, *path)
	if err != nil {
		log.Fatalln(err)
	}
	defer idx.Close()
	log.WithFields(log.Fields{
		"run_id": idx.Metadata.RunID,
		"driver": bcf.WhichSQLiteDriver(),
	}).Infoln("Writing counts to", *idxPath)

	var aw *arrow.CountWriter
	if *arrowPath != "" {
		aw, err = arrow.NewCountWriter(expandHome(*arrowPath), *chunkSize)
		if err != nil {
			log.Fatalln(err)
		}
	}

	var nRecords, nCounted, nUncountable, nCorrupt int
	rr := b.NewRecordReader()
	for r := rr.Read(); r != nil; r = rr.Read() {
		nRecords++
		if nRecords%10000 == 0 {
			log.Println("Processed", nRecords, "records")
		}

		counts, src, err := bcf.AlleleCounts(b.Header, r, which)
		if err != nil {
			if !errors.Is(err, bcf.ErrCorrupt) || *onCorrupt == "halt" {
				log.Fatalln(err)
			}
			nCorrupt++
			if *onCorrupt == "warn" {
				log.WithField("site", r.Site(b.Header)).Warnln(err)
			}
			continue
		}
		if src == bcf.CountSourceNone {
			nUncountable++
			continue
		}

		if err := idx.Add(b.Header, r, counts, src); err != nil {
			log.Fatalln(err)
		}
		if aw != nil {
			if err := aw.Write(b.Header, r, counts); err != nil {
				log.Fatalln(err)
			}
		}
		nCounted++
	}
	if err := rr.Error(); err != nil {
		if !errors.Is(err, bcf.ErrCorrupt) || *onCorrupt == "halt" {
			log.Fatalln(err)
		}
		log.Warnln("Stopped reading early:", err)
	}

	if aw != nil {
		if err := aw.Close(); err != nil {
			log.Fatalln(err)
		}
	}

	nSites, err := idx.NSites()
	if err != nil {
		log.Fatalln(err)
	}

	log.WithFields(log.Fields{
		"records":     nRecords,
		"counted":     nCounted,
		"uncountable": nUncountable,
		"corrupt":     nCorrupt,
		"sites":       nSites,
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
