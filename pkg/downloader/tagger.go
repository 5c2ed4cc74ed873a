package downloader

import (
	"fmt"
	"path/filepath"
	"strings"

	mp4tag "github.com/Sorrow446/go-mp4tag"
	"github.com/bogem/id3v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/utils"
)

// Tagger writes title, artist and album tags from the catalog record into a downloaded file.
type Tagger struct{}

func NewTagger() *Tagger {
	return &Tagger{}
}

func (t *Tagger) Tag(filePath string, track models.Track) error {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".mp3":
		return tagMP3(filePath, track)
	case ".flac":
		return tagFLAC(filePath, track)
	case ".m4a", ".mp4":
		return tagM4A(filePath, track)
	default:
		return fmt.Errorf("unsupported file format: %s (supported: .mp3, .flac, .m4a, .mp4)", ext)
	}
}

func tagMP3(filePath string, track models.Track) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(track.Name)
	tag.SetArtist(utils.JoinArtists(track.Artists))
	if track.Album != "" {
		tag.SetAlbum(track.Album)
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save MP3 tags: %w", err)
	}

	return nil
}

// parseFLAC wraps flac.ParseFile, which indexes into the frame data without a
// length check and panics on files that end after the metadata blocks.
func parseFLAC(filePath string) (f *flac.File, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("failed to parse FLAC file: truncated stream: %v", r)
		}
	}()

	f, err = flac.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
	}
	return f, nil
}

func tagFLAC(filePath string, track models.Track) error {
	f, err := parseFLAC(filePath)
	if err != nil {
		return err
	}

	var cmts *flacvorbis.MetaDataBlockVorbisComment
	cmtIdx := -1

	for idx, meta := range f.Meta {
		if meta.Type == flac.VorbisComment {
			cmts, err = flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return fmt.Errorf("failed to parse vorbis comment: %w", err)
			}
			cmtIdx = idx
			break
		}
	}

	if cmts == nil {
		cmts = flacvorbis.New()
	}

	// Add appends, so drop the fields we own first
	kept := cmts.Comments[:0]
	for _, c := range cmts.Comments {
		key, _, _ := strings.Cut(c, "=")
		switch strings.ToUpper(key) {
		case flacvorbis.FIELD_TITLE, flacvorbis.FIELD_ARTIST, flacvorbis.FIELD_ALBUM:
			continue
		}
		kept = append(kept, c)
	}
	cmts.Comments = kept

	fields := [][2]string{
		{flacvorbis.FIELD_TITLE, track.Name},
		{flacvorbis.FIELD_ARTIST, utils.JoinArtists(track.Artists)},
		{flacvorbis.FIELD_ALBUM, track.Album},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := cmts.Add(field[0], field[1]); err != nil {
			return fmt.Errorf("failed to add %s tag: %w", field[0], err)
		}
	}

	cmtsMeta := cmts.Marshal()
	if cmtIdx >= 0 {
		f.Meta[cmtIdx] = &cmtsMeta
	} else {
		f.Meta = append(f.Meta, &cmtsMeta)
	}

	if err := f.Save(filePath); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}

	return nil
}

func tagM4A(filePath string, track models.Track) error {
	mp4, err := mp4tag.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open M4A file: %w", err)
	}
	defer mp4.Close()

	tags := &mp4tag.MP4Tags{
		Title:  track.Name,
		Artist: utils.JoinArtists(track.Artists),
		Album:  track.Album,
	}

	if err := mp4.Write(tags, []string{}); err != nil {
		return fmt.Errorf("failed to write M4A tags: %w", err)
	}

	return nil
}
