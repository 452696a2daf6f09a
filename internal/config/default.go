package config

// DefaultYAML is written by `changdang config` when no config file exists.
const DefaultYAML = `# store holds the content cache.
store:
  # memory, file or sqlite
  backend: file
  # directory (file) or database file (sqlite); empty uses the user data dir
  path: ""
  key_prefix: changdang
  # zstd level for the file backend, 0 disables compression
  compression_level: 3

player:
  # oto plays through the system audio device; mock simulates playback
  device: oto
  # 0.5 to 2.0
  default_rate: 1.0
  sample_rate: 44100
  channels: 2
  time_update_interval: 250ms
  # decoded audio kept in memory, e.g. 64MB; 0 disables
  cache_size: 64MiB

content:
  # directory holding sites.json and terms.json; empty uses the built-in dataset
  dataset_dir: ""
  # zh or en
  language: zh

log:
  level: info
  # write debug output to a file in the user data dir
  debug_file: false
`
