// Package avatar handles user profile images: the deterministic gravatar
// default assigned on signup, and processing of uploaded files.
package avatar

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/wkbook/phonebook/utils"
)

const AvatarSize = 250

// GravatarURL returns the identicon URL gravatar derives from an email.
func GravatarURL(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?d=identicon", md5.Sum([]byte(normalized)))
}

// Process resizes the staged upload at srcPath to a fixed square, writes it
// into publicDir/avatars under fileName & removes the staged file. It returns
// the public URL path for the stored avatar.
//
// The steps are sequenced so a failure before the final write leaves the
// staged file in place; there is no transactional guarantee with the caller's
// db update.
func Process(srcPath, publicDir, fileName string) (string, error) {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return "", errors.Wrap(err, "unable to decode avatar upload")
	}

	resized := imaging.Resize(img, AvatarSize, AvatarSize, imaging.Lanczos)

	avatarsDir := filepath.Join(publicDir, "avatars")
	if err = utils.CreateDirIfNotExist(avatarsDir); err != nil {
		return "", errors.Wrap(err, "unable to create avatars dir")
	}

	destPath := filepath.Join(avatarsDir, fileName)
	if err = imaging.Save(resized, destPath); err != nil {
		return "", errors.Wrap(err, "unable to save avatar")
	}

	if err = os.Remove(srcPath); err != nil {
		return "", errors.Wrap(err, "unable to remove staged avatar")
	}

	return "/avatars/" + fileName, nil
}
