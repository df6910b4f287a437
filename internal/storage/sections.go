package storage

import "io"

// readAt reads the full piece (across however many regions it spans)
// into buf. PaddingFile regions already read back as zero on their
// own; this just drives the MultiReader-style fan-out across regions,
// generalizing the teacher's filesection.Sections.ReadFull.
func readAt(regions []region, buf []byte) error {
	pos := 0
	for _, r := range regions {
		n := int(r.length)
		if _, err := r.file.ReadAt(buf[pos:pos+n], r.offset); err != nil {
			return err
		}
		pos += n
	}
	if pos != len(buf) {
		return io.ErrShortBuffer
	}
	return nil
}

// writeAt writes a verified piece across its regions. Padding regions
// are skipped: PaddingFile.WriteAt panics, since a padding span's
// bytes are defined to be zero and are never persisted.
func writeAt(regions []region, buf []byte) (int, error) {
	pos := 0
	for _, r := range regions {
		n := int(r.length)
		if _, isPadding := r.file.(PaddingFile); !isPadding {
			m, err := r.file.WriteAt(buf[pos:pos+n], r.offset)
			if err != nil {
				return pos + m, err
			}
			if m < n {
				return pos + m, io.ErrShortWrite
			}
		}
		pos += n
	}
	return pos, nil
}
