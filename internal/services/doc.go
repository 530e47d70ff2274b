// Package services defines the [PlaylistResolver] interface for music library sources and implements it for M3U
// playlist files and the Swinsian library database.
//
// # Resolver Interface
//
// A resolver turns a playlist name into the ordered list of absolute source file paths it contains.
// [BuildDesiredSet] unions several playlists into the [models.DesiredSet] a sync run works from.
//
// # M3U Implementation
//
// [M3UResolver] reads <dir>/<name>.m3u or <dir>/<name>.m3u8. Comment and directive lines (#EXTM3U, #EXTINF)
// are skipped; relative entries are resolved against the playlist file's directory.
//
// # Swinsian Implementation
//
// [SwinsianResolver] opens the Swinsian sqlite library read-only and joins the playlist, playlist_track and track
// tables in playlist order.
//
// # Error Handling
//
// Resolvers use typed errors from shared package:
//   - [shared.ErrPlaylistNotFound] : no playlist with that name
//   - [shared.ErrInvalidConfig] : the resolver is missing its source location
package services
