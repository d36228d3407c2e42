package bbs

import "github.com/mathclub/festival-bbs/internal/storage"

const rootPath = "bulletin_board"

var (
	boardsPath   = storage.Join(rootPath, "boards")
	postsRoot    = storage.Join(rootPath, "posts")
	metadataPath = storage.Join(rootPath, "metadata")
)

func boardPath(boardID string) string {
	return storage.Join(boardsPath, boardID)
}

func postsPath(boardID string) string {
	return storage.Join(postsRoot, boardID)
}

func postPath(boardID, postID string) string {
	return storage.Join(postsRoot, boardID, postID)
}
