package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/gamestats --output domain/gamestats --outpkg gamestatsmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Store --dir ../domain/statcache --output domain/statcache --outpkg statcachemock --filename store_mock.go
