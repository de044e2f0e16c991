// video_service.go
package main

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"github.com/djamal195/last/cache"
)

const (
	videoReadyMessage       = "Voici votre vidéo : %s"
	videoDownloadingMessage = "Téléchargement de la vidéo en cours... Cela peut prendre quelques instants."
	videoFallbackMessage    = "Désolé, je n'ai pas pu télécharger la vidéo. Voici le lien YouTube : %s"
	videoProcessingError    = "Désolé, je n'ai pas pu traiter cette vidéo. Veuillez réessayer plus tard."
)

// downloadGroup collapses concurrent downloads of the same video into a
// single fetch and upload.
var downloadGroup singleflight.Group

// handleWatchVideo delivers a YouTube video in the chat, downloading and
// re-hosting it the first time it is requested.
func handleWatchVideo(ctx context.Context, senderID, videoID, title string) {
	if videoID == "" {
		LogWarn("watch_video postback without a video ID from user %s", senderID)
		if err := sendTextMessage(ctx, senderID, videoProcessingError); err != nil {
			LogError("Error sending reply to %s: %v", senderID, err)
		}
		return
	}
	if title == "" {
		title = "Vidéo YouTube"
	}

	if err := processWatchVideo(ctx, senderID, videoID, title); err != nil {
		LogError("❌ Error processing video %s: %v", videoID, err)
		if err := sendTextMessage(ctx, senderID, videoProcessingError); err != nil {
			LogError("Error sending reply to %s: %v", senderID, err)
		}
	}
}

func processWatchVideo(ctx context.Context, senderID, videoID, title string) error {
	hostedURL, err := cachedVideoURL(ctx, videoID)
	if err != nil {
		return err
	}

	if hostedURL != "" {
		log.Printf("🎬 Video %s already hosted, sending directly", videoID)
		if err := sendTextMessage(ctx, senderID, fmt.Sprintf(videoReadyMessage, title)); err != nil {
			return err
		}
		return sendVideoMessage(ctx, senderID, hostedURL)
	}

	if err := sendTextMessage(ctx, senderID, videoDownloadingMessage); err != nil {
		return err
	}

	hostedURL, err = fetchAndStoreVideo(ctx, videoID, title)
	if err != nil {
		LogError("❌ Error downloading video %s: %v", videoID, err)
		fallback := fmt.Sprintf(videoFallbackMessage, youtubeWatchURL(videoID))
		return sendTextMessage(ctx, senderID, fallback)
	}

	if err := sendTextMessage(ctx, senderID, fmt.Sprintf(videoReadyMessage, title)); err == nil {
		err = sendVideoMessage(ctx, senderID, hostedURL)
	}
	if err != nil {
		// The video is hosted but delivery failed; the link still works.
		LogError("❌ Error sending video %s: %v", videoID, err)
		fallback := fmt.Sprintf(videoFallbackMessage, youtubeWatchURL(videoID))
		return sendTextMessage(ctx, senderID, fallback)
	}
	return nil
}

// cachedVideoURL looks up the hosted copy of a video, Redis first, then
// the videos collection. Empty means the video was never downloaded.
func cachedVideoURL(ctx context.Context, videoID string) (string, error) {
	return cache.GetVideoURL(videoID, func(id string) (string, error) {
		rec, err := videoStore.FindByVideoID(ctx, id)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", nil
		}
		return rec.CloudinaryURL, nil
	})
}

// fetchAndStoreVideo downloads the video, re-hosts it and records it.
// Concurrent requests for the same video share one download.
func fetchAndStoreVideo(ctx context.Context, videoID, title string) (string, error) {
	result, err, shared := downloadGroup.Do(videoID, func() (interface{}, error) {
		return downloadAndUpload(ctx, videoID, title)
	})
	if err != nil {
		return "", err
	}
	if shared {
		LogDebug("🔁 Download of %s shared between concurrent requests", videoID)
	}
	return result.(string), nil
}

func downloadAndUpload(ctx context.Context, videoID, title string) (string, error) {
	if cloudinaryService == nil {
		return "", fmt.Errorf("video hosting is not configured")
	}

	stream, size, err := ytDownloader.Download(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %v", err)
	}
	defer stream.Close()

	log.Printf("⬇️ Downloading video %s (%d bytes)", videoID, size)

	publicID := "youtube_" + videoID
	hostedURL, err := cloudinaryService.UploadVideo(ctx, stream, publicID)
	if err != nil {
		return "", fmt.Errorf("error uploading video: %v", err)
	}

	rec := VideoRecord{
		VideoID:       videoID,
		Title:         title,
		CloudinaryURL: hostedURL,
		Thumbnail:     fmt.Sprintf("https://img.youtube.com/vi/%s/default.jpg", videoID),
	}
	if err := videoStore.Save(ctx, rec); err != nil {
		// Without the record we would re-upload next time under the
		// same public ID anyway; drop the orphan.
		if derr := cloudinaryService.Destroy(ctx, publicID, "video"); derr != nil {
			LogWarn("Could not remove orphaned upload %s: %v", publicID, derr)
		}
		return "", err
	}

	cache.CacheVideoURL(videoID, hostedURL)
	return hostedURL, nil
}
